package mist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Site is the part of a site record the exporter needs to fan out.
type Site struct {
	ID   string
	Name string
}

// Sites lists the organization's sites and keeps those matching the site name filter.
// A site without an id or name makes the whole listing unusable.
func (c *Client) Sites(ctx context.Context) ([]Site, error) {
	target, err := c.endpoint("orgs", c.orgID, "sites")
	if err != nil {
		return nil, err
	}
	records, err := c.getRecords(ctx, target)
	if err != nil {
		return nil, err
	}

	sites := make([]Site, 0, len(records))
	for i, rec := range records {
		id, err := stringField(rec, "id")
		if err != nil {
			return nil, errors.WithStack(&FetchError{Kind: DecodeFailure, URL: target, Code: 200, Err: fmt.Errorf("site %d: %w", i, err)})
		}
		name, err := stringField(rec, "name")
		if err != nil {
			return nil, errors.WithStack(&FetchError{Kind: DecodeFailure, URL: target, Code: 200, Err: fmt.Errorf("site %s: %w", id, err)})
		}
		ok, err := c.filter.Match(name)
		if err != nil {
			return nil, err
		}
		if ok {
			sites = append(sites, Site{ID: id, Name: name})
		}
	}

	c.logger.Info("fetched sites",
		slog.Int("sites", len(records)),
		slog.Int("sites_matched", len(sites)),
		slog.String("filter", c.filter.String()),
	)
	c.logger.Debug("matched sites", slog.Any("sites", sites))
	return sites, nil
}

func stringField(rec map[string]any, key string) (string, error) {
	raw, ok := rec[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("missing field %q", key)
	}
	switch raw.(type) {
	case map[string]any, []any:
		return "", fmt.Errorf("field %q is not a scalar", key)
	}
	return cast.ToStringE(raw)
}
