package mist

import (
	"context"
	"log/slog"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DeviceStats fetches device stats for every site. Sites are fetched with bounded
// parallelism; the result keeps site order. The first failing site cancels the rest
// and fails the whole call.
func (c *Client) DeviceStats(ctx context.Context, sites []Site) ([]map[string]any, error) {
	results := make([][]map[string]any, len(sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, site := range sites {
		g.Go(func() (err error) {
			// a panic here would bypass the caller's recover
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("panic fetching devices of site %s: %v", site.Name, r)
				}
			}()
			target, err := c.endpoint("sites", site.ID, "stats", "devices")
			if err != nil {
				return err
			}
			records, err := c.getRecords(gctx, target)
			if err != nil {
				return err
			}
			c.logger.Debug("fetched site devices",
				slog.String("site", site.Name),
				slog.String("site_id", site.ID),
				slog.Int("devices", len(records)),
			)
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	devices := slices.Concat(results...)
	c.logger.Info("fetched devices", slog.Int("sites", len(sites)), slog.Int("devices", len(devices)))
	c.logger.Debug("device stats", slog.Any("devices", devices))
	return devices, nil
}

// EdgeStats fetches Mist Edge stats for the organization.
func (c *Client) EdgeStats(ctx context.Context) ([]map[string]any, error) {
	target, err := c.endpoint("orgs", c.orgID, "stats", "mxedges")
	if err != nil {
		return nil, err
	}
	edges, err := c.getRecords(ctx, target)
	if err != nil {
		return nil, err
	}
	c.logger.Info("fetched edges", slog.Int("edges", len(edges)))
	c.logger.Debug("edge stats", slog.Any("edges", edges))
	return edges, nil
}
