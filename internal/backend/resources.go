package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Resource is a backend collection.
type Resource struct {
	Name string
	Path string
}

// Known collections.
var (
	Students   = Resource{Name: "students", Path: "core/students"}
	Parents    = Resource{Name: "parents", Path: "core/parents"}
	Branches   = Resource{Name: "branches", Path: "core/branches"}
	Users      = Resource{Name: "users", Path: "core/users"}
	Devices    = Resource{Name: "devices", Path: "attendance/devices"}
	Records    = Resource{Name: "attendance", Path: "attendance/records"}
	SMSLogs    = Resource{Name: "sms-logs", Path: "attendance/sms-logs"}
	Settings   = Resource{Name: "settings", Path: "attendance/settings"}
	AuthTarget = Resource{Name: "auth", Path: "core/auth"}
)

// ByName resolves the collections exposed through the gateway's generic CRUD routes.
func ByName(name string) (Resource, bool) {
	for _, r := range []Resource{Students, Parents, Branches, Users, Devices, Records, SMSLogs} {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

func (r Resource) collection() string { return r.Path + "/" }

func (r Resource) item(id int) string { return r.Path + "/" + strconv.Itoa(id) + "/" }

func (r Resource) action(name string) string { return r.Path + "/" + name + "/" }

func (r Resource) itemAction(id int, name string) string {
	return r.Path + "/" + strconv.Itoa(id) + "/" + name + "/"
}

// ListParams are the list query knobs every collection understands.
type ListParams struct {
	Page     int
	PageSize int
	Search   string
	Ordering string
	Filters  map[string]string
}

// Values renders the params as a query string, dropping empty values.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(p.PageSize))
	}
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Ordering != "" {
		v.Set("ordering", p.Ordering)
	}
	for k, val := range p.Filters {
		if val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// List fetches one page of a collection.
func List[T any](ctx context.Context, c *Client, r Resource, p ListParams) (Page[T], error) {
	var out Page[T]
	err := c.jsonRequest(ctx, http.MethodGet, r.Name, r.collection(), p.Values(), nil, &out)
	return out, err
}

// Get fetches a single item.
func Get[T any](ctx context.Context, c *Client, r Resource, id int) (T, error) {
	var out T
	err := c.jsonRequest(ctx, http.MethodGet, r.Name, r.item(id), nil, nil, &out)
	return out, err
}

// Create posts a new item.
func Create[T any](ctx context.Context, c *Client, r Resource, payload any) (T, error) {
	var out T
	err := c.jsonRequest(ctx, http.MethodPost, r.Name, r.collection(), nil, payload, &out)
	return out, err
}

// Update partially updates an item (PATCH).
func Update[T any](ctx context.Context, c *Client, r Resource, id int, payload any) (T, error) {
	var out T
	err := c.jsonRequest(ctx, http.MethodPatch, r.Name, r.item(id), nil, payload, &out)
	return out, err
}

// Delete removes an item.
func (c *Client) Delete(ctx context.Context, r Resource, id int) error {
	return c.jsonRequest(ctx, http.MethodDelete, r.Name, r.item(id), nil, nil, nil)
}

// Count returns the collection size for the given filters using a one-item page.
func (c *Client) Count(ctx context.Context, r Resource, filters map[string]string) (int, error) {
	page, err := List[struct{}](ctx, c, r, ListParams{PageSize: 1, Filters: filters})
	if err != nil {
		return 0, err
	}
	return page.Count, nil
}
