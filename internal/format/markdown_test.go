package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHTML(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{
			name: "blocks",
			in:   "# Title\nSome **bold** and *it* text.\n- one\n- two\n\n1. first\n2. second\nEnd",
			want: "<h1>Title</h1>Some <strong>bold</strong> and <em>it</em> text.<ul><li>one</li><li>two</li></ul><ol><li>first</li><li>second</li></ol>End",
		},
		{
			name: "escapes first",
			in:   `<script>alert("x")</script>`,
			want: "&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;",
		},
		{
			name: "newlines",
			in:   "a\nb\n\nc",
			want: "a<br>b<br><br>c",
		},
		{
			name: "safe link",
			in:   "[site](https://ex.com/a?b=1&c=2)",
			want: `<a href="https://ex.com/a?b=1&amp;c=2">site</a>`,
		},
		{
			name: "relative link",
			in:   "[detail](/listings/A1)",
			want: `<a href="/listings/A1">detail</a>`,
		},
		{
			name: "unsafe scheme stays text",
			in:   "[bad](javascript:alert(1))",
			want: "[bad](javascript:alert(1))",
		},
		{
			name: "snake case untouched",
			in:   "mls_number and _it_",
			want: "mls_number and <em>it</em>",
		},
		{
			name: "nested emphasis",
			in:   "**bold *inner* end** __u__",
			want: "<strong>bold <em>inner</em> end</strong> <strong>u</strong>",
		},
		{
			name: "link inside list item",
			in:   "* see [**A1**](/listings/A1)\n+ plus",
			want: `<ul><li>see <a href="/listings/A1"><strong>A1</strong></a></li><li>plus</li></ul>`,
		},
		{
			name: "headings levels",
			in:   "## Two\n### Three\n#### Four",
			want: "<h2>Two</h2><h3>Three</h3>#### Four",
		},
		{
			name: "unclosed emphasis is literal",
			in:   "5 * 3 = 15 and **open",
			want: "5 * 3 = 15 and **open",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ToHTML(c.in))
		})
	}
}

func TestSafeURL(t *testing.T) {
	for u, want := range map[string]bool{
		"https://a.b":           true,
		"HTTP://a.b":            true,
		"mailto:x@y.z":          true,
		"/listings/1":           true,
		"page?x=a:b":            true,
		"#top":                  true,
		"javascript:alert(1)":   false,
		"data:text/html;base64": false,
		"":                      false,
		"has space":             false,
	} {
		assert.Equal(t, want, safeURL(u), u)
	}
}
