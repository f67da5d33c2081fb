package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElement(t *testing.T) {
	assert.Equal(t, "<div>7</div>", Element("div", "", "7"))
	assert.Equal(t, `<td class="Mon past">x</td>`, Element("td", `class="Mon past"`, "x"))
	assert.Equal(t, "<tr></tr>", Element("tr", "", ""))
}

func TestAttrsEscapesValues(t *testing.T) {
	got := Attrs(Attr{Name: "class", Value: `a"b`}, Attr{Name: "title", Value: "x<y"})
	assert.Equal(t, `class="a&#34;b" title="x&lt;y"`, got)
	assert.Equal(t, "", Attrs())
}

func TestClass(t *testing.T) {
	assert.Equal(t, `class="work recurring"`, Class([]string{"work", "recurring"}))
	assert.Equal(t, `class="a&amp;b"`, Class([]string{"a&b"}))
	assert.Equal(t, "", Class(nil))
	assert.Equal(t, "", Class([]string{"", ""}))
}

func TestWrapJoin(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		fallback string
		want     string
	}{
		{name: "joined", items: []string{"a", "b"}, want: "[a,b]"},
		{name: "single", items: []string{"a"}, want: "[a]"},
		{name: "empty uses fallback", items: nil, fallback: "none", want: "none"},
		{name: "empty strings only", items: []string{""}, fallback: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WrapJoin(tt.items, "[", ",", "]", tt.fallback))
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "Tom &amp; Jerry &lt;3", Text("Tom & Jerry <3"))
}
