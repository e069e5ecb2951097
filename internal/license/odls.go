// Package license retrieves and validates license metadata from the Open
// Definition License Service (ODLS).
package license

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/sentinel-energy/friendly-data/internal/dpkg"
	"github.com/sentinel-energy/friendly-data/internal/fderrors"
)

// ODLSURL is the URL template of the license service; the parameter is a
// license group.
const ODLSURL = "https://licenses.opendefinition.org/licenses/groups/%s.json"

// Groups are the license groups ODLS serves: everything, OSI compliant,
// Open Definition compliant, and the CKAN selection.
var Groups = []string{"all", "osi", "od", "ckan"}

// License is the metadata ODLS publishes per license.
type License struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	Status         string `json:"status"`
	Family         string `json:"family"`
	Maintainer     string `json:"maintainer"`
	DomainContent  bool   `json:"domain_content"`
	DomainData     bool   `json:"domain_data"`
	DomainSoftware bool   `json:"domain_software"`
	ODConformance  string `json:"od_conformance"`
	OSDConformance string `json:"osd_conformance"`
}

// Domain returns the first domain the license covers, in content, data,
// software order; empty if none.
func (l License) Domain() string {
	switch {
	case l.DomainContent:
		return "content"
	case l.DomainData:
		return "data"
	case l.DomainSoftware:
		return "software"
	}
	return ""
}

// Client fetches license groups from ODLS through a cache.
type Client struct {
	http  *http.Client
	cache *Cache
	urlT  string
}

// NewClient creates an ODLS client. cache may be nil to skip caching;
// httpc defaults to http.DefaultClient.
func NewClient(httpc *http.Client, cache *Cache) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{http: httpc, cache: cache, urlT: ODLSURL}
}

// WithBaseURL overrides the URL template; used in tests.
func (c *Client) WithBaseURL(urlT string) *Client {
	c.urlT = urlT
	return c
}

// Licenses returns the licenses of a group, keyed by license ID.
func (c *Client) Licenses(ctx context.Context, group string) (map[string]License, error) {
	if !validGroup(group) {
		return nil, fderrors.Newf(fderrors.CategoryLicense, fderrors.CodeUnknownGroup,
			"unknown license group: %s, should be one of: %s", group, strings.Join(Groups, ", "))
	}
	url := fmt.Sprintf(c.urlT, group)
	body, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	var out map[string]License
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryLicense, fderrors.CodeFetchFailed, url, err)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if c.cache != nil {
		if body, ok, err := c.cache.Get(url); err != nil {
			return nil, err
		} else if ok {
			return body, nil
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryLicense, fderrors.CodeFetchFailed, url, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryLicense, fderrors.CodeFetchFailed, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fderrors.Newf(fderrors.CategoryLicense, fderrors.CodeFetchFailed,
			"%s: HTTP %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fderrors.Wrap(fderrors.CategoryLicense, fderrors.CodeFetchFailed, url, err)
	}
	if c.cache != nil {
		if err := c.cache.Put(url, body); err != nil {
			slog.Warn("could not cache license metadata", "url", url, "error", err)
		}
	}
	return body, nil
}

// List returns the sorted license IDs of a group.
func (c *Client) List(ctx context.Context, group string) ([]string, error) {
	licenses, err := c.Licenses(ctx, group)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(licenses))
	for id := range licenses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Get finds a license by ID within a group and returns its package
// descriptor form, warning about questionable choices.
func (c *Client) Get(ctx context.Context, id, group string) (dpkg.License, error) {
	licenses, err := c.Licenses(ctx, group)
	if err != nil {
		return dpkg.License{}, err
	}
	lic, ok := licenses[id]
	if !ok {
		return dpkg.License{}, fderrors.Newf(fderrors.CategoryLicense, fderrors.CodeUnknownLicense,
			"license %q not in group %q", id, group)
	}
	return Check(lic), nil
}

// Check converts ODLS metadata to the package descriptor form, warning when
// the license is retired or does not cover data.
func Check(lic License) dpkg.License {
	if lic.Status != "active" {
		slog.Warn("inappropriate license: not active", "license", lic.ID)
	}
	if !lic.DomainData {
		slog.Warn("inappropriate license: not data", "license", lic.ID)
	}
	return dpkg.License{Name: lic.ID, Path: lic.URL, Title: lic.Title}
}

// Metadata returns license metadata for the active, maintained licenses of
// the "all" group that satisfy pred (nil accepts all). keys selects which
// fields appear in each record; "domain" resolves via Domain.
func (c *Client) Metadata(ctx context.Context, keys []string, pred func(License) bool) ([]map[string]string, error) {
	licenses, err := c.Licenses(ctx, "all")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(licenses))
	for id := range licenses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []map[string]string
	for _, id := range ids {
		lic := licenses[id]
		// GFDL records are oddly shaped upstream, leave them out
		if lic.Status != "active" || lic.Maintainer == "" || strings.Contains(lic.ID, "GFDL") {
			continue
		}
		if pred != nil && !pred(lic) {
			continue
		}
		rec := map[string]string{}
		for _, key := range keys {
			switch key {
			case "id":
				rec[key] = lic.ID
			case "title":
				rec[key] = lic.Title
			case "url":
				rec[key] = lic.URL
			case "status":
				rec[key] = lic.Status
			case "family":
				rec[key] = lic.Family
			case "maintainer":
				rec[key] = lic.Maintainer
			case "domain":
				rec[key] = lic.Domain()
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Resolve normalises the licenses in package metadata: names are looked up
// in ODLS and replaced with full descriptor entries; entries that already
// carry a path are kept as they are.
func (c *Client) Resolve(ctx context.Context, meta dpkg.Meta) (dpkg.Meta, error) {
	out := meta
	out.Licenses = make([]dpkg.License, len(meta.Licenses))
	for i, lic := range meta.Licenses {
		if lic.Path != "" {
			out.Licenses[i] = lic
			continue
		}
		resolved, err := c.Get(ctx, lic.Name, "all")
		if err != nil {
			return dpkg.Meta{}, err
		}
		out.Licenses[i] = resolved
	}
	return out, nil
}

func validGroup(group string) bool {
	for _, g := range Groups {
		if g == group {
			return true
		}
	}
	return false
}
