package schema

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type note struct {
	Title string `json:"title"`
	Words int    `json:"words"`
}

type notebook struct {
	Name  string            `json:"name"`
	Notes []string          `json:"notes"`
	Meta  map[string]string `json:"meta"`
	Pin   note              `json:"pin"`
}

func TestTypeOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, reflect.TypeOf(note{}), TypeOf[note]())
	require.Equal(t, reflect.TypeOf(""), TypeOf[string]())
}

func TestMarshalPrettyPrints(t *testing.T) {
	t.Parallel()

	data, err := Marshal(note{Title: "draft", Words: 12})
	require.NoError(t, err)
	require.Equal(t, "{\n  \"title\": \"draft\",\n  \"words\": 12\n}\n", string(data))
}

func TestUnmarshal(t *testing.T) {
	t.Parallel()

	t.Run("RoundTripNested", func(t *testing.T) {
		t.Parallel()
		in := notebook{
			Name:  "work",
			Notes: []string{"a", "b"},
			Meta:  map[string]string{"owner": "avi"},
			Pin:   note{Title: "pinned", Words: 3},
		}
		data, err := Marshal(in)
		require.NoError(t, err)

		out, err := Unmarshal(data, TypeOf[notebook]())
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("UnknownFieldsIgnored", func(t *testing.T) {
		t.Parallel()
		out, err := Unmarshal([]byte(`{"title": "x", "surprise": true}`), TypeOf[note]())
		require.NoError(t, err)
		require.Equal(t, note{Title: "x"}, out)
	})

	t.Run("MissingFieldsDefault", func(t *testing.T) {
		t.Parallel()
		out, err := Unmarshal([]byte(`{}`), TypeOf[note]())
		require.NoError(t, err)
		require.Equal(t, note{}, out)
	})

	t.Run("NilType", func(t *testing.T) {
		t.Parallel()
		_, err := Unmarshal([]byte(`{}`), nil)
		require.Error(t, err)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		t.Parallel()
		_, err := Unmarshal([]byte(`{`), TypeOf[note]())
		require.Error(t, err)
	})
}
