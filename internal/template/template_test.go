package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		tmpl string
		want string
	}{
		{
			name: "tag name with prefix",
			ctx:  Context{Version: "1.2.3", Prefix: "mycrate-"},
			tmpl: "{{prefix}}v{{version}}",
			want: "mycrate-v1.2.3",
		},
		{
			name: "all placeholders",
			ctx: Context{
				PrevVersion: "1.0.0",
				Version:     "1.1.0",
				NextVersion: "1.1.1-alpha",
				CrateName:   "foo",
				TagName:     "v1.1.0",
				Date:        "2023-04-01",
			},
			tmpl: "{{crate_name}} {{prev_version}}->{{version}} ({{next_version}}) tag {{tag_name}} on {{date}}",
			want: "foo 1.0.0->1.1.0 (1.1.1-alpha) tag v1.1.0 on 2023-04-01",
		},
		{
			name: "unknown placeholder passes through",
			ctx:  Context{Version: "1.0.0"},
			tmpl: "{{version}} {{bogus}}",
			want: "1.0.0 {{bogus}}",
		},
		{
			name: "unset placeholder passes through",
			ctx:  Context{Version: "1.0.0"},
			tmpl: "{{version}} next={{next_version}}",
			want: "1.0.0 next={{next_version}}",
		},
		{
			name: "no placeholders",
			ctx:  Context{Version: "1.0.0"},
			tmpl: "chore: release",
			want: "chore: release",
		},
		{
			name: "repeated placeholder",
			ctx:  Context{CrateName: "foo"},
			tmpl: "{{crate_name}}/{{crate_name}}",
			want: "foo/foo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ctx.Render(tt.tmpl))
		})
	}
}
