// internal/form/renderer.go
//
// Forms subsystem: HTML renderer.
//
// Context
//   Given a live FormSession this file converts its definition and state
//   into safe, accessible markup.  Current values are echoed back (never for
//   password or file inputs), errors appear under touched fields, and the
//   hidden `form_id` and `csrf_token` inputs tie the POST back to the session.
//
// Workflow
//   •  RenderForm writes a <form> element with one wrapper per field via
//      writeField, then the hidden meta inputs and the submit button.
//   •  The <form> carries `data-live`, the endpoint the page script posts
//      field changes to for live validation (see handler.go).
//   •  The caller receives template.HTML so the surrounding template does not
//      double-escape the markup.
//
// Style
//   Output HTML is deliberately plain so the stylesheet can target element
//   selectors.  Each input gets id="fld-{name}" and is wrapped in
//   <div class="form-field">.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"slices"
)

// RenderOptions bundles optional parameters influencing HTML output.
type RenderOptions struct {
	// Action is the POST target.  Required.
	Action string
	// LivePath overrides the live-validation endpoint.  Empty uses
	// "/forms/{id}/fields".
	LivePath string
	// Submit overrides the button label from the definition.
	Submit string
	// Extra hidden inputs, e.g. the comment id being edited.
	Hidden map[string]string
}

// RenderForm returns the HTML markup for sess.
func RenderForm(sess *Session, opts RenderOptions) (template.HTML, error) {
	if sess == nil {
		return "", fmt.Errorf("RenderForm: nil session")
	}
	fd := sess.Def()
	values := sess.Values()
	errs := sess.VisibleErrors()
	pending := sess.Pending()

	token, err := GenerateToken(sess.ID())
	if err != nil {
		return "", fmt.Errorf("RenderForm %s: %w", fd.ID, err)
	}

	live := opts.LivePath
	if live == "" {
		live = "/forms/" + sess.ID() + "/fields"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<form class="forum-form" method="post" action="%s" data-form="%s" data-live="%s"`,
		html.EscapeString(opts.Action), html.EscapeString(fd.ID), html.EscapeString(live))
	if hasFile(fd) {
		buf.WriteString(` enctype="multipart/form-data"`)
	}
	buf.WriteString(` novalidate>` + "\n")

	if msg := sess.FormError(); msg != "" {
		buf.WriteString(`<p class="form-error" role="alert">` + html.EscapeString(msg) + `</p>` + "\n")
	}

	for _, f := range fd.Fields {
		if err := writeField(&buf, &f, values[f.Name], errs[f.Name], slices.Contains(pending, f.Name)); err != nil {
			return "", err
		}
	}

	// Hidden meta inputs.
	buf.WriteString(`<input type="hidden" name="form_id" value="` + html.EscapeString(sess.ID()) + `">` + "\n")
	buf.WriteString(`<input type="hidden" name="csrf_token" value="` + html.EscapeString(token) + `">` + "\n")
	for _, k := range sortedKeys(opts.Hidden) {
		buf.WriteString(`<input type="hidden" name="` + html.EscapeString(k) + `" value="` + html.EscapeString(opts.Hidden[k]) + `">` + "\n")
	}

	label := opts.Submit
	if label == "" {
		label = fd.Submit
	}
	if label == "" {
		label = "확인"
	}
	buf.WriteString(`<button type="submit">` + html.EscapeString(label) + `</button>` + "\n")
	buf.WriteString(`</form>`)
	return template.HTML(buf.String()), nil
}

// writeField emits HTML for one field.
func writeField(buf *bytes.Buffer, f *FieldDef, val, errMsg string, pending bool) error {
	name := html.EscapeString(f.Name)

	if f.Type == "hidden" {
		buf.WriteString(`<input type="hidden" name="` + name + `" value="` + html.EscapeString(val) + `">` + "\n")
		return nil
	}

	class := "form-field"
	if errMsg != "" {
		class += " has-error"
	}
	if pending {
		class += " is-pending"
	}
	buf.WriteString(`<div class="` + class + `">` + "\n")
	buf.WriteString(`<label for="fld-` + name + `">` + html.EscapeString(f.Label) + `</label>` + "\n")

	idAttr := `id="fld-` + name + `"`
	nameAttr := `name="` + name + `"`

	switch f.Type {
	case "text", "email", "password":
		buf.WriteString(`<input ` + idAttr + ` ` + nameAttr + ` type="` + f.Type + `"`)
		if f.Placeholder != "" {
			buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
		}
		// password fields are never prefilled.
		if val != "" && f.Type != "password" {
			buf.WriteString(` value="` + html.EscapeString(val) + `"`)
		}
		buf.WriteString(`>` + "\n")

	case "textarea":
		buf.WriteString(`<textarea ` + idAttr + ` ` + nameAttr)
		if f.Placeholder != "" {
			buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
		}
		// The parser drops one newline after the start tag; write our own
		// so content that begins with a blank line survives the round trip.
		buf.WriteString(`>` + "\n" + html.EscapeString(val) + `</textarea>` + "\n")

	case "file":
		buf.WriteString(`<input ` + idAttr + ` ` + nameAttr + ` type="file" accept="image/*">` + "\n")

	default:
		return fmt.Errorf("writeField: unsupported field type %q in form field %s", f.Type, f.Name)
	}

	buf.WriteString(`<span class="error" aria-live="polite">` + html.EscapeString(errMsg) + `</span>` + "\n")
	buf.WriteString(`</div>` + "\n")
	return nil
}

func hasFile(fd *FormDef) bool {
	for _, f := range fd.Fields {
		if f.Type == "file" {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
