package tracsdk

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// PageInfo is the metadata Trac keeps per wiki page version.
type PageInfo struct {
	Name         string
	Version      int
	Author       string
	Comment      string
	LastModified time.Time
}

// ListPages returns every wiki page name, sorted.
func (c *Client) ListPages(ctx context.Context) ([]string, error) {
	result, err := c.call(ctx, "wiki.getAllPages")
	if err != nil {
		return nil, err
	}
	values := result.ArrayVals()
	pages := make([]string, 0, len(values))
	for i := range values {
		pages = append(pages, values[i].Str())
	}
	sort.Strings(pages)
	return pages, nil
}

// GetPage fetches the latest content of a page.
func (c *Client) GetPage(ctx context.Context, name string) (string, error) {
	result, err := c.call(ctx, "wiki.getPage", name)
	if err != nil {
		return "", err
	}
	return result.Str(), nil
}

// GetPageVersion fetches a specific historical version of a page.
func (c *Client) GetPageVersion(ctx context.Context, name string, version int) (string, error) {
	result, err := c.call(ctx, "wiki.getPageVersion", name, version)
	if err != nil {
		return "", err
	}
	return result.Str(), nil
}

// GetPageInfo fetches the latest version metadata of a page.
func (c *Client) GetPageInfo(ctx context.Context, name string) (*PageInfo, error) {
	result, err := c.call(ctx, "wiki.getPageInfo", name)
	if err != nil {
		return nil, err
	}
	info := &PageInfo{Name: name}
	if v := result.Member("name"); v != nil {
		info.Name = v.Str()
	}
	if v := result.Member("version"); v != nil {
		info.Version = v.IntVal()
	}
	if v := result.Member("author"); v != nil {
		info.Author = v.Str()
	}
	if v := result.Member("comment"); v != nil {
		info.Comment = v.Str()
	}
	if v := result.Member("lastModified"); v != nil {
		info.LastModified = v.TimeVal()
	}
	return info, nil
}

// PageVersion returns the current version counter of a page.
func (c *Client) PageVersion(ctx context.Context, name string) (int, error) {
	info, err := c.GetPageInfo(ctx, name)
	if err != nil {
		return 0, err
	}
	return info.Version, nil
}

// PutPage writes page content with an edit comment. A version above zero is
// sent as an optimistic concurrency check: Trac rejects the write with a
// version-conflict fault when the page has moved past that version.
func (c *Client) PutPage(ctx context.Context, name, content, comment string, version int) error {
	attrs := map[string]any{"comment": comment}
	if version > 0 {
		attrs["version"] = version
	}
	_, err := c.call(ctx, "wiki.putPage", name, content, attrs)
	return err
}

// DeletePage removes a page and its history.
func (c *Client) DeletePage(ctx context.Context, name string) error {
	result, err := c.call(ctx, "wiki.deletePage", name)
	if err != nil {
		return err
	}
	if !result.BoolVal() {
		return fmt.Errorf("tracsdk: delete of %s was rejected", name)
	}
	return nil
}
