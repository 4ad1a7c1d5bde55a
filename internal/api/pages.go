package api

import "fmt"

// Pager is implemented by response bodies that carry pagination metadata.
// LinkTransformer turns them into next/prev/first/last Link headers.
type Pager interface {
	PaginationLinks(basePath string) []string
}

// PageInput selects a page of a list.
type PageInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Number of items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

// Page is a paginated response envelope.
type Page[T any] struct {
	Total  int `json:"total" doc:"Total number of items"`
	Offset int `json:"offset" doc:"Current offset"`
	Limit  int `json:"limit" doc:"Page size"`
	Data   []T `json:"data" doc:"Items"`
}

// paginate cuts the requested page out of items.
func paginate[T any](items []T, in PageInput) Page[T] {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	start := min(max(in.Offset, 0), len(items))
	end := min(start+limit, len(items))
	data := make([]T, end-start)
	copy(data, items[start:end])
	return Page[T]{Total: len(items), Offset: start, Limit: limit, Data: data}
}

// PaginationLinks returns RFC 8288 Link header values for pagination rels.
func (p Page[T]) PaginationLinks(basePath string) []string {
	var links []string

	links = append(links, fmt.Sprintf(`<%s?offset=0&limit=%d>; rel="first"`, basePath, p.Limit))

	if p.Offset > 0 {
		prev := max(p.Offset-p.Limit, 0)
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="prev"`, basePath, prev, p.Limit))
	}

	if p.Offset+p.Limit < p.Total {
		links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="next"`, basePath, p.Offset+p.Limit, p.Limit))
	}

	lastOffset := max(((p.Total-1)/p.Limit)*p.Limit, 0)
	links = append(links, fmt.Sprintf(`<%s?offset=%d&limit=%d>; rel="last"`, basePath, lastOffset, p.Limit))

	return links
}

// Action is a hypermedia action link with its HTTP method.
//
//	</api/v1/sessions/01J9.../drag>; rel="drag"; method="POST"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// LinkHeader formats the action as an RFC 8288 Link header value.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	return h
}

// sessionActions lists what can be done to the session at path.
func sessionActions(path string) []Action {
	return []Action{
		{Rel: "annotate", Href: path + "/annotations", Method: "POST", Title: "Add annotations"},
		{Rel: "click", Href: path + "/click", Method: "POST", Title: "Click the map"},
		{Rel: "drag", Href: path + "/drag", Method: "POST", Title: "Drag on the map"},
		{Rel: "export", Href: path + "/archive", Method: "POST", Title: "Export a PMTiles archive"},
		{Rel: "delete", Href: path, Method: "DELETE", Title: "Delete session"},
	}
}
