package slug

import (
	"regexp"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "diacritics and punctuation", input: "Héllö, World! 2024", expected: "hello-world-2024"},
		{name: "surrounding noise", input: "  -- A_B  ", expected: "a-b"},
		{name: "simple title", input: "Hello", expected: "hello"},
		{name: "german umlauts", input: "Über München", expected: "uber-munchen"},
		{name: "compatibility forms", input: "ﬁle Ⅳ", expected: "file-iv"},
		{name: "only symbols", input: "!@#$%^&*()", expected: ""},
		{name: "non latin script", input: "日本語タイトル", expected: ""},
		{name: "empty", input: "", expected: ""},
		{name: "already a slug", input: "hello-world-2024", expected: "hello-world-2024"},
		{name: "digits only", input: "2024", expected: "2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestSlugify_Properties(t *testing.T) {
	valid := regexp.MustCompile(`^([a-z0-9]+(-[a-z0-9]+)*)?$`)
	faker := gofakeit.New(42)

	inputs := []string{"Ça va? Très bien!", "---", "  a  ", "Ünïcödé -- Ťëxť", "x__y__z"}
	for i := 0; i < 200; i++ {
		inputs = append(inputs, faker.Sentence(6), faker.City(), faker.Name()+" "+faker.Emoji())
	}

	for _, in := range inputs {
		got := Slugify(in)
		assert.Regexp(t, valid, got, "input %q", in)
		assert.Equal(t, got, Slugify(got), "not idempotent for %q", in)
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "my-title", Canonical("My Title", "custom", "1"))
	assert.Equal(t, "custom", Canonical("", "custom", "1"))
	assert.Equal(t, "custom", Canonical("!!!", "custom", "1"))
	assert.Equal(t, "123", Canonical("", "", "123"))
	assert.Equal(t, "", Canonical("", "", ""))
}

func TestPostURL(t *testing.T) {
	assert.Equal(t, "/p/t", PostURL("", "t"))
	assert.Equal(t, "https://blog.example/p/t", PostURL("https://blog.example/", "t"))
	assert.Equal(t, "", PostURL("https://blog.example", ""))
}

func TestShareURL(t *testing.T) {
	u := ShareURL("Hello World", PostURL("", Canonical("Hello World", "", "")))
	assert.Contains(t, u, "https://x.com/intent/tweet?")
	assert.Contains(t, u, "text=Hello%20World")
	assert.Contains(t, u, "url=%2Fp%2Fhello-world")

	u = ShareURL("A&B = C+D", "/p/a")
	assert.Contains(t, u, "text=A%26B%20%3D%20C%2BD")
}
