package ajaxform

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// SuccessBlock renders the success message block:
//
//	<div class="{class}">{markup}</div>
//
// markup is written as is. It is developer-supplied and trusted; never build
// it from user input. The class attribute is escaped.
func SuccessBlock(class, markup string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="`+Escape(class)+`">`+markup+`</div>`)
		return err
	})
}

// ErrorBlock renders one error message block with text escaped:
//
//	<div class="{class}">{escaped text}</div>
func ErrorBlock(class, text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div class="`+Escape(class)+`">`+Escape(text)+`</div>`)
		return err
	})
}

// ErrorBlocks renders one ErrorBlock per message in field-then-index order.
//
// Message text usually echoes user input back from the server, so every
// message is escaped.
func ErrorBlocks(class string, set MessageSet) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, fm := range set {
			for _, msg := range fm.Messages {
				if err := ErrorBlock(class, msg).Render(ctx, w); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// RenderString renders c to a string.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
