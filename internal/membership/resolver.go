// Package membership asks each configured project whether it knows a phone number.
package membership

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"whatsapp-router/internal/metrics"
	"whatsapp-router/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ProjectLister supplies the projects to probe.
type ProjectLister interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
}

type Resolver struct {
	projects    ProjectLister
	httpClient  *resty.Client
	timeout     time.Duration
	concurrency int
	metrics     *metrics.RouterMetrics
}

func NewResolver(projects ProjectLister, timeout time.Duration, concurrency int, m *metrics.RouterMetrics) *Resolver {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Resolver{
		projects:    projects,
		httpClient:  resty.New().SetHeader("Accept", "application/json"),
		timeout:     timeout,
		concurrency: concurrency,
		metrics:     m,
	}
}

// Resolve returns the ids of every project that reports phone as a member,
// in ascending id order. A project whose probe fails is logged and left out;
// only a failure to list projects is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, phone string) ([]uint, error) {
	projects, err := r.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	var (
		mu      sync.Mutex
		members []uint
	)
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	for _, p := range projects {
		if !p.CanProbe() {
			continue
		}
		g.Go(func() error {
			ok, err := r.probe(ctx, p, phone)
			if err != nil {
				log.Warn().Err(err).Uint("projectId", p.ID).Str("project", p.Name).Str("waId", phone).Msg("Membership probe failed")
				r.metrics.ObserveProbe("error")
				return nil
			}
			if !ok {
				r.metrics.ObserveProbe("absent")
				return nil
			}
			r.metrics.ObserveProbe("member")
			mu.Lock()
			members = append(members, p.ID)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	log.Debug().Str("waId", phone).Interface("projects", members).Msg("Membership resolved")
	return members, nil
}

func (r *Resolver) probe(ctx context.Context, p models.Project, phone string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := ProbeURL(p.APIURL, p.UserNumbersAPIURL)
	req := r.httpClient.R().
		SetContext(ctx).
		SetQueryParam("phone", phone)
	if p.APIKey != "" {
		req.SetHeader("X-API-KEY", p.APIKey)
	}

	resp, err := req.Get(url)
	if err != nil {
		return false, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.IsError() {
		return false, fmt.Errorf("GET %s: status %s", url, resp.Status())
	}
	return parseMembership(resp.Body())
}

// ProbeURL joins a project base URL and its membership route.
func ProbeURL(base, route string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return base + route
}

// parseMembership accepts either a bare boolean or an object with an
// "exists" field.
func parseMembership(body []byte) (bool, error) {
	var flag bool
	if err := json.Unmarshal(body, &flag); err == nil {
		return flag, nil
	}

	var obj struct {
		Exists *bool `json:"exists"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return false, fmt.Errorf("malformed membership response: %w", err)
	}
	return obj.Exists != nil && *obj.Exists, nil
}
