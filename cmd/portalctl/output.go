package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/unrepo/devportal/internal/activity"
	"github.com/unrepo/devportal/internal/config"
	"github.com/unrepo/devportal/internal/dashboard"
	"github.com/unrepo/devportal/internal/models"
)

type printer struct {
	out    io.Writer
	asJSON bool
}

func newPrinter(out io.Writer, asJSON bool) *printer {
	if asJSON {
		color.NoColor = true
	}
	return &printer{out: out, asJSON: asJSON}
}

func statusString(k dashboard.KeyRow) string {
	if k.IsActive {
		return color.GreenString(k.Status)
	}
	return color.RedString(k.Status)
}

func (p *printer) json(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) view(v dashboard.View) error {
	if p.asJSON {
		return p.json(v)
	}
	fmt.Fprintf(p.out, "%s  active keys: %d  total calls: %d\n\n", color.CyanString(v.Identity), v.ActiveKeyCount, v.TotalCalls)
	if len(v.Keys) == 0 {
		fmt.Fprintln(p.out, "No API keys yet. Create one with -command create.")
		return nil
	}

	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tTYPE\tSTATUS\tCALLS\tTIER\tKEY")
	for _, k := range v.Keys {
		tier := fmt.Sprintf("%s %d/%d", k.Quota.Tier, k.Quota.Used, k.Quota.Limit)
		if k.Quota.Unlimited {
			tier = k.Quota.Tier
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n", k.ID, k.Label, k.Type, statusString(k), k.UsageCount, tier, k.Secret)
	}
	return tw.Flush()
}

func (p *printer) usage(records []models.UsageRecord, total int64) error {
	if p.asJSON {
		return p.json(map[string]interface{}{"usage": records, "totalCalls": total})
	}
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tENDPOINT\tCALLS\tLAST USED")
	for _, r := range records {
		last := "-"
		if r.LastUsed != nil {
			last = r.LastUsed.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Method, r.Endpoint, r.Count, last)
	}
	fmt.Fprintf(tw, "\t\t%d\ttotal\n", total)
	return tw.Flush()
}

func (p *printer) chart(c activity.Chart) error {
	if p.asJSON {
		return p.json(c)
	}
	last := c.Points[len(c.Points)-1]
	_, err := fmt.Fprintf(p.out, "%s  current: %d calls  avg: %d  peak: %d\n", color.HiBlackString(last.Label), c.Current, c.Average, c.Peak)
	return err
}

// runWatch samples activity and refreshes the key list on every tick
func runWatch(ctx context.Context, ctrl *dashboard.Controller, cfg *config.Config, out *printer, d time.Duration) error {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	graph := activity.NewGraph(cfg.Activity.Points, cfg.Activity.Interval, time.Now())
	sampler := activity.NewSampler(graph, ctrl, cfg.Activity.Interval)
	if err := sampler.Start(ctx); err != nil {
		return err
	}
	defer sampler.Stop()

	ticker := time.NewTicker(cfg.Activity.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ctrl.RefreshKeys(ctx)
			if err := out.chart(graph.Snapshot()); err != nil {
				return err
			}
		}
	}
}
