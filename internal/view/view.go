// Package view converts snippet and user records into HTML fragments.
//
// ESCAPING:
// Every fragment goes through html/template, whose contextual auto-escaping
// covers ALL user-supplied fields identically — element text, attribute
// values, the lot. There is no hand-rolled escapeHtml and no field that
// bypasses it, so there is no field-specific injection vector to audit.
//
// ACTION DESCRIPTORS:
// Per-item actions are not inline script handlers. Each action is either a
// plain link (view/edit) or a small POST form, and the copy button carries
// the raw code in a data-code attribute for the page script's clipboard
// handler ({kind, id} travels as data-action/data-id). One central page
// script dispatches on those — no global function names, no string-built
// markup.
package view

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/codevault/dashboard/internal/model"
)

var fragments = template.Must(template.New("fragments").Funcs(template.FuncMap{
	"tagList": model.Snippet.TagList,
}).Parse(`
{{define "card"}}<div class="snippet-card">
  <div class="snippet-header">
    <div>
      <h3 class="snippet-title">{{.Title}}</h3>
      <span class="snippet-language">{{.Language}}</span>
    </div>
  </div>
  <p class="snippet-description">{{.Description}}</p>
  <div class="snippet-tags">{{range tagList .}}<span class="tag">#{{.}}</span>{{end}}</div>
  <div class="snippet-actions">
    <button type="button" class="btn copy-btn" data-action="copy" data-id="{{.ID}}" data-code="{{.Code}}">Copy</button>
    <a class="btn btn-secondary" href="/snippets/{{.ID}}">View</a>
    <a class="btn btn-warning" href="/snippets/{{.ID}}/edit">Edit</a>
    <form class="inline" method="post" action="/snippets/{{.ID}}/delete" data-confirm="Delete snippet?">
      <button type="submit" class="btn btn-danger" data-action="delete" data-id="{{.ID}}">Delete</button>
    </form>
    <form class="inline" method="post" action="/snippets/{{.ID}}/favorite">
      <button type="submit" class="fav-btn" data-action="favorite" data-id="{{.ID}}">{{if .IsFavorite}}&#9733;{{else}}&#9734;{{end}}</button>
    </form>
  </div>
</div>{{end}}

{{define "userRow"}}<tr>
  <td>{{.ID}}</td>
  <td>{{.Username}}</td>
  <td>{{.Email}}</td>
  <td>{{.Role}}</td>
  <td>{{if eq .Role "admin"}}<span class="no-action">&mdash;</span>{{else}}<form class="inline" method="post" action="/admin/users/{{.ID}}/delete" data-confirm="Delete this user?">
    <button type="submit" class="delete-btn" data-action="delete-user" data-id="{{.ID}}">Delete</button>
  </form>{{end}}</td>
</tr>{{end}}

{{define "tagCard"}}<div class="tag-card">
  <a class="tag-header" href="/snippets?tag={{.Name}}">
    <h3 class="tag-name">#{{.Name}}</h3>
    <span class="tag-count">{{.Count}} snippet{{if ne .Count 1}}s{{end}}</span>
  </a>
  <div class="tag-snippets">
    {{range .Previews}}<div class="snippet-preview">
      <div class="snippet-preview-title">{{.Title}}</div>
      <div class="snippet-preview-language">{{.Language}}</div>
    </div>{{end}}
    {{if gt .More 0}}<div class="tag-more">+{{.More}} more</div>{{end}}
  </div>
</div>{{end}}
`))

// tagCardData caps the preview list at three snippets, like the original
// tag grid, and carries the "+N more" remainder.
type tagCardData struct {
	Name     string
	Count    int
	Previews []model.Snippet
	More     int
}

// SnippetCard renders one snippet as a self-contained card fragment.
func SnippetCard(s model.Snippet) (template.HTML, error) {
	return render("card", s)
}

// UserRow renders one user as a table row. The delete action is suppressed
// for admin rows — a UI convenience only; the backend independently refuses
// to delete admins regardless of what a crafted request claims.
func UserRow(u model.User) (template.HTML, error) {
	return render("userRow", u)
}

// TagCard renders one tag aggregate with up to three snippet previews.
func TagCard(t model.Tag) (template.HTML, error) {
	data := tagCardData{Name: t.Name, Count: t.Count, Previews: t.Snippets}
	if len(data.Previews) > 3 {
		data.More = len(data.Previews) - 3
		data.Previews = data.Previews[:3]
	}
	return render("tagCard", data)
}

func render(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s fragment: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

// SnippetCards renders a whole snapshot, in order.
func SnippetCards(snips []model.Snippet) ([]template.HTML, error) {
	out := make([]template.HTML, 0, len(snips))
	for _, s := range snips {
		frag, err := SnippetCard(s)
		if err != nil {
			return nil, err
		}
		out = append(out, frag)
	}
	return out, nil
}

// UserRows renders the admin user table body, in order.
func UserRows(users []model.User) ([]template.HTML, error) {
	out := make([]template.HTML, 0, len(users))
	for _, u := range users {
		frag, err := UserRow(u)
		if err != nil {
			return nil, err
		}
		out = append(out, frag)
	}
	return out, nil
}

// TagCards renders the tag grid, in order.
func TagCards(tags []model.Tag) ([]template.HTML, error) {
	out := make([]template.HTML, 0, len(tags))
	for _, t := range tags {
		frag, err := TagCard(t)
		if err != nil {
			return nil, err
		}
		out = append(out, frag)
	}
	return out, nil
}
