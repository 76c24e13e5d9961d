package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	ErrNotAForm      = errors.New("selection is not a single <form>")
	ErrNoButton      = errors.New("no submit control to click")
	ErrButtonOutside = errors.New("submit control is not inside the form")
	ErrNoFormAction  = errors.New("form has no resolvable action")
)

// Field is one name/value pair of a form payload.
type Field struct {
	Name  string
	Value string
}

// FormRequest is the request a browser would send for a form submission. Field
// order follows document order.
type FormRequest struct {
	Method string
	URL    *url.URL
	Fields []Field
}

// Get returns the first value submitted under name.
func (r *FormRequest) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces every value under name with value, appending the field if the
// form had none.
func (r *FormRequest) Set(name, value string) {
	out := r.Fields[:0]
	found := false
	for _, f := range r.Fields {
		if f.Name != name {
			out = append(out, f)
			continue
		}
		if !found {
			out = append(out, Field{Name: name, Value: value})
			found = true
		}
	}
	if !found {
		out = append(out, Field{Name: name, Value: value})
	}
	r.Fields = out
}

// Encode renders the fields as application/x-www-form-urlencoded.
func (r *FormRequest) Encode() string {
	var b strings.Builder
	for i, f := range r.Fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}

// NewRequest builds the HTTP request. GET submissions carry the payload as the
// query string, replacing any query in the action.
func (r *FormRequest) NewRequest(ctx context.Context) (*http.Request, error) {
	if r.URL == nil {
		return nil, ErrNoFormAction
	}

	if r.Method == http.MethodPost {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL.String(), strings.NewReader(r.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	target := *r.URL
	if len(r.Fields) > 0 {
		target.RawQuery = r.Encode()
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
}

// SubmitByClicking computes the request that results from clicking button
// inside form. Of all submit controls only the clicked one contributes its
// name/value pair. Relative actions resolve against base; a missing action
// submits to base itself.
func SubmitByClicking(form, button *goquery.Selection, base *url.URL) (*FormRequest, error) {
	if form == nil || form.Length() != 1 || goquery.NodeName(form) != "form" {
		return nil, ErrNotAForm
	}
	if button == nil || button.Length() == 0 {
		return nil, ErrNoButton
	}
	clicked := button.Nodes[0]
	if !form.Contains(clicked) {
		return nil, ErrButtonOutside
	}

	action, err := formAction(form, base)
	if err != nil {
		return nil, err
	}

	method := http.MethodGet
	if strings.EqualFold(strings.TrimSpace(form.AttrOr("method", "")), "post") {
		method = http.MethodPost
	}

	return &FormRequest{
		Method: method,
		URL:    action,
		Fields: formData(form, clicked),
	}, nil
}

// FindAncestorMatching returns the nearest proper ancestor of the first node
// in sel that m matches.
func FindAncestorMatching(sel *goquery.Selection, m goquery.Matcher) (*goquery.Selection, bool) {
	if sel == nil || sel.Length() == 0 {
		return nil, false
	}

	for n := sel.Nodes[0].Parent; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && m.Match(n) {
			return sel.Parents().FilterNodes(n), true
		}
	}
	return nil, false
}

func formAction(form *goquery.Selection, base *url.URL) (*url.URL, error) {
	action := strings.TrimSpace(form.AttrOr("action", ""))

	if action == "" {
		if base == nil {
			return nil, ErrNoFormAction
		}
		u := *base
		u.Fragment = ""
		return &u, nil
	}

	ref, err := url.Parse(action)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFormAction, err)
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() {
		return nil, fmt.Errorf("%w: %q is relative and there is no base URL", ErrNoFormAction, action)
	}
	ref.Fragment = ""
	return ref, nil
}

// formData collects the successful controls of form in document order.
func formData(form *goquery.Selection, clicked *html.Node) []Field {
	var fields []Field

	form.Find("input, select, textarea, button").Each(func(_ int, el *goquery.Selection) {
		name, _ := el.Attr("name")
		if name == "" {
			return
		}
		if _, disabled := el.Attr("disabled"); disabled {
			return
		}

		isClicked := el.Nodes[0] == clicked

		switch goquery.NodeName(el) {
		case "input":
			switch strings.ToLower(el.AttrOr("type", "text")) {
			case "submit":
				if isClicked {
					fields = append(fields, Field{Name: name, Value: el.AttrOr("value", "")})
				}
			case "image":
				if isClicked {
					fields = append(fields, Field{Name: name + ".x", Value: "0"}, Field{Name: name + ".y", Value: "0"})
				}
			case "checkbox", "radio":
				if _, checked := el.Attr("checked"); checked {
					fields = append(fields, Field{Name: name, Value: el.AttrOr("value", "on")})
				}
			case "button", "reset", "file":
			default:
				fields = append(fields, Field{Name: name, Value: el.AttrOr("value", "")})
			}

		case "button":
			typ := strings.ToLower(el.AttrOr("type", "submit"))
			if typ == "submit" && isClicked {
				fields = append(fields, Field{Name: name, Value: el.AttrOr("value", "")})
			}

		case "textarea":
			fields = append(fields, Field{Name: name, Value: el.Text()})

		case "select":
			fields = append(fields, selectValues(el, name)...)
		}
	})

	return fields
}

func selectValues(sel *goquery.Selection, name string) []Field {
	options := sel.Find("option")
	selected := options.Filter("[selected]")

	if selected.Length() == 0 {
		if _, multiple := sel.Attr("multiple"); multiple || options.Length() == 0 {
			return nil
		}
		selected = options.First()
	}

	var fields []Field
	selected.Each(func(_ int, opt *goquery.Selection) {
		value, ok := opt.Attr("value")
		if !ok {
			value = strings.TrimSpace(opt.Text())
		}
		fields = append(fields, Field{Name: name, Value: value})
	})
	return fields
}
