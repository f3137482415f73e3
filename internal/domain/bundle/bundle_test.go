package bundle

import (
	"strings"
	"testing"
	"testing/fstest"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"markup", Markup, false},
		{"html", Markup, false},
		{" CSS ", Style, false},
		{"style", Style, false},
		{"js", Script, false},
		{"script", Script, false},
		{"json", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetRejectsUnknownKind(t *testing.T) {
	b := New("<p>x</p>", "p{}", "1")
	err := b.Set(Kind("typescript"), "let x: number")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, New("<p>x</p>", "p{}", "1"), b)

	_, err = b.Get(Kind("typescript"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSizeLimit(t *testing.T) {
	big := strings.Repeat("x", MaxSourceSize+1)

	var b Bundle
	assert.ErrorIs(t, b.Set(Script, big), ErrTooLarge)
	assert.Empty(t, b.Script)
	require.NoError(t, b.Set(Script, big[1:]))

	assert.ErrorIs(t, Bundle{Style: big}.Validate(), ErrTooLarge)
	assert.NoError(t, New("a", "b", "c").Validate())

	_, err := FromMap(map[string]string{"css": big})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestWithDoesNotMutate(t *testing.T) {
	b := New("a", "b", "c")
	c := b.With(Script, "d")

	assert.Equal(t, "c", b.Script)
	assert.Equal(t, "d", c.Script)
}

func TestFromMap(t *testing.T) {
	b, err := FromMap(map[string]string{"html": "<i>", "js": "go()"})
	require.NoError(t, err)
	assert.Equal(t, New("<i>", "", "go()"), b)

	_, err = FromMap(map[string]string{"wasm": "00"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestTemplates(t *testing.T) {
	list, err := Templates()
	require.NoError(t, err)
	require.NotEmpty(t, list)

	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Name, list[i].Name)
	}

	def, err := FromTemplate("")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hello VS Code UI</h1>", def.Markup)
	assert.Equal(t, "body { background:#111; color:#fff }", def.Style)
	assert.Equal(t, "console.log('JS Loaded');", def.Script)

	_, err = FromTemplate("nope")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestParseTemplatesRejectsDuplicates(t *testing.T) {
	_, err := ParseTemplates([]byte("- name: a\n- name: a\n"))
	assert.Error(t, err)

	_, err = ParseTemplates([]byte("- description: nameless\n"))
	assert.Error(t, err)
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":      {Data: []byte("<h1>hi</h1>")},
		"other.html":      {Data: []byte("<h2>no</h2>")},
		"css/theme.css":   {Data: []byte("h1{}")},
		"app.js":          {Data: []byte("console.log(1)")},
		"vendor/extra.js": {Data: []byte("ignored")},
	}

	b, sources, err := LoadFS(fsys)
	require.NoError(t, err)

	assert.Equal(t, New("<h1>hi</h1>", "h1{}", "console.log(1)"), b)
	assert.Equal(t, "index.html", sources[Markup])
	assert.Equal(t, "css/theme.css", sources[Style])
	assert.Equal(t, "app.js", sources[Script])
}

func TestLoadFSEmpty(t *testing.T) {
	_, _, err := LoadFS(fstest.MapFS{"README.md": {Data: []byte("#")}})
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestWatched(t *testing.T) {
	assert.True(t, Watched("index.html"))
	assert.True(t, Watched("src/app.js"))
	assert.True(t, Watched("theme.css"))
	assert.False(t, Watched("README.md"))
}

func TestLoadFSManifest(t *testing.T) {
	fsys := fstest.MapFS{
		ManifestName:      {Data: []byte("[sources]\nhtml = \"pages/home.html\"\njs = \"./dist/main.js\"\n")},
		"index.html":      {Data: []byte("<h1>default</h1>")},
		"pages/home.html": {Data: []byte("<h1>home</h1>")},
		"style.css":       {Data: []byte("h1{}")},
		"app.js":          {Data: []byte("ignored")},
		"dist/main.js":    {Data: []byte("console.log(2)")},
	}

	b, sources, err := LoadFS(fsys)
	require.NoError(t, err)

	assert.Equal(t, New("<h1>home</h1>", "h1{}", "console.log(2)"), b)
	assert.Equal(t, "pages/home.html", sources[Markup])
	assert.Equal(t, "style.css", sources[Style])
	assert.Equal(t, "dist/main.js", sources[Script])
}

func TestLoadFSManifestErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{name: "bad toml", manifest: "[sources\n"},
		{name: "unknown kind", manifest: "[sources]\npython = \"main.py\"\n"},
		{name: "pinned twice", manifest: "[sources]\nhtml = \"a.html\"\nmarkup = \"b.html\"\n"},
		{name: "escapes root", manifest: "[sources]\njs = \"../app.js\"\n"},
		{name: "missing file", manifest: "[sources]\njs = \"nope.js\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				ManifestName: {Data: []byte(tt.manifest)},
				"app.js":     {Data: []byte("console.log(1)")},
			}
			_, _, err := LoadFS(fsys)
			assert.Error(t, err)
		})
	}
}

func TestDecodeSource(t *testing.T) {
	got, err := DecodeSource([]byte("\ufeffconsole.log('hi')"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi')", got)

	got, err = DecodeSource(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	latin1 := []byte("// caf\xe9 \xe9t\xe9 r\xe9sum\xe9 d\xe9cid\xe9 pour le march\xe9 du quartier\nconsole.log('caf\xe9')\n")
	got, err = DecodeSource(latin1)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got))
	assert.Contains(t, got, "console.log('café')")
}

func TestLoadFSRejectsBinary(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	_, _, err := LoadFS(fstest.MapFS{"app.js": {Data: png}})
	assert.ErrorIs(t, err, ErrBinarySource)
}

func TestWatchedManifest(t *testing.T) {
	assert.True(t, Watched(ManifestName))
}
