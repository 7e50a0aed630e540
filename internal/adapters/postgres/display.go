package postgres

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/samirrijal/geomap/internal/core/domain"
)

func (r *HostRepo) Name(ctx context.Context, e domain.Entity) (string, error) {
	if e.Name != "" {
		return e.Name, nil
	}
	return e.Ref.String(), nil
}

// Icon returns the entity icon, falling back to the class icon.
func (r *HostRepo) Icon(ctx context.Context, e domain.Entity) (string, error) {
	if e.Icon != "" {
		return e.Icon, nil
	}
	return r.ClassIcon(ctx, e.Ref.Class)
}

// DetailsURL is the host page of one entity.
func (r *HostRepo) DetailsURL(ref domain.EntityRef) string {
	v := url.Values{}
	v.Set("operation", "details")
	v.Set("class", ref.Class)
	v.Set("id", ref.Key)
	return r.appRoot + "pages/UI.php?" + v.Encode()
}

// Tooltip renders a hyperlink to the entity followed by a table of the
// class's list attributes.
func (r *HostRepo) Tooltip(ctx context.Context, e domain.Entity) (string, error) {
	m, err := r.class(ctx, e.Ref.Class)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<a href="%s">%s</a><hr/><table>`, html.EscapeString(r.DetailsURL(e.Ref)), html.EscapeString(e.Name))
	for _, a := range m.Attributes {
		if !a.Is(domain.CapList) || a.IsGeolocation() {
			continue
		}
		fmt.Fprintf(&sb, "<tr><td>%s</td><td>%s</td></tr>", html.EscapeString(a.Label), html.EscapeString(e.Fields[a.Code]))
	}
	sb.WriteString("</table>")
	return sb.String(), nil
}

// SummaryURL returns the summary panel of e when both the module setting
// and the class allow summary cards.
func (r *HostRepo) SummaryURL(ctx context.Context, e domain.Entity) (string, error) {
	if !r.summaryCards {
		return "", nil
	}
	m, err := r.class(ctx, e.Ref.Class)
	if err != nil {
		return "", err
	}
	if !m.SummaryCards {
		return "", nil
	}
	v := url.Values{}
	v.Set("route", "object.summary")
	v.Set("obj_class", e.Ref.Class)
	v.Set("obj_key", e.Ref.Key)
	return r.appRoot + "pages/ajax.render.php?" + v.Encode(), nil
}
