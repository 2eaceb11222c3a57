package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPost_ShortText(t *testing.T) {
	cases := map[string]string{
		"Тестовый текст, который длиннее 15 символов": "Тестовый текст,",
		"короткий":        "короткий",
		"ровно15символов": "ровно15символов",
		"":                "",
	}
	for text, want := range cases {
		p := Post{Text: text}
		assert.Equal(t, want, p.ShortText(), "text %q", text)
		assert.Equal(t, want, p.String())
	}
}

func TestGroup_String(t *testing.T) {
	g := Group{Title: "Название", Slug: "test-slug"}
	assert.Equal(t, "Название", g.String())
}
