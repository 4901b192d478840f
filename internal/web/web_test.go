package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
)

func TestNewEngine_LoadsEveryView(t *testing.T) {
	engine := NewEngine(nil)
	require.NoError(t, engine.Load())
}

func TestFuncs(t *testing.T) {
	funcs := Funcs(nil)

	assert.ElementsMatch(t,
		[]string{"photoURL", "since", "comma", "date", "fieldErrors"},
		keys(funcs),
	)

	photo := funcs["photoURL"].(PhotoFunc)
	assert.Equal(t, "/uploads/a.jpg", photo(models.User{ProfilePhoto: "/uploads/a.jpg"}))

	comma := funcs["comma"].(func(int64) string)
	assert.Equal(t, "1,234", comma(1234))

	since := funcs["since"].(func(time.Time) string)
	assert.Equal(t, "", since(time.Time{}))

	fieldErrors := funcs["fieldErrors"].(func(map[string][]string, string) []string)
	assert.Equal(t, []string{"bad"}, fieldErrors(map[string][]string{"email": {"bad"}}, "email"))
	assert.Nil(t, fieldErrors(nil, "email"))
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
