package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "sentences split on period and question mark",
			text: "Olá! Como vai? Obrigado pelo contato.",
			want: []string{"Olá! Como vai", "Obrigado pelo contato."},
		},
		{
			name: "exclamation does not split",
			text: "Que notícia boa! Vamos juntos!",
			want: []string{"Que notícia boa! Vamos juntos!"},
		},
		{
			name: "single sentence stays whole",
			text: "Conte comigo",
			want: []string{"Conte comigo"},
		},
		{
			name: "empty text yields nothing",
			text: "   ",
			want: nil,
		},
		{
			name: "whitespace between sentences is consumed",
			text: "Primeira.   Segunda",
			want: []string{"Primeira", "Segunda"},
		},
		{
			name: "trailing punctuation without following space stays attached",
			text: "Tudo certo?",
			want: []string{"Tudo certo?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitChunks(tt.text))
		})
	}
}

func TestChatIDFromPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{name: "formatted number", phone: "+55 (11) 91234-5678", want: "5511912345678@c.us"},
		{name: "bare digits", phone: "5511912345678", want: "5511912345678@c.us"},
		{name: "dots and spaces", phone: "55 11.9123.45678", want: "5511912345678@c.us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChatIDFromPhone(tt.phone))
		})
	}
}

func TestMessageHash(t *testing.T) {
	base := time.Date(2026, 8, 30, 14, 30, 15, 0, time.UTC)

	t.Run("same content within a minute collides", func(t *testing.T) {
		h1 := MessageHash("+5511912345678", "Olá", base)
		h2 := MessageHash("+5511912345678", "Olá", base.Add(40*time.Second))
		assert.Equal(t, h1, h2)
	})

	t.Run("same content across minutes differs", func(t *testing.T) {
		h1 := MessageHash("+5511912345678", "Olá", base)
		h2 := MessageHash("+5511912345678", "Olá", base.Add(time.Minute))
		assert.NotEqual(t, h1, h2)
	})

	t.Run("different recipients differ", func(t *testing.T) {
		h1 := MessageHash("+5511912345678", "Olá", base)
		h2 := MessageHash("+5511987654321", "Olá", base)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("different text differs", func(t *testing.T) {
		h1 := MessageHash("+5511912345678", "Olá", base)
		h2 := MessageHash("+5511912345678", "Oi", base)
		assert.NotEqual(t, h1, h2)
	})
}
