package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"

	"github.com/faanross/simulacra_ppm/internal/chunker"
	"github.com/faanross/simulacra_ppm/internal/spec"
)

// Client fetches carriers from a relay.
type Client struct {
	server  string // host:port of the relay
	domain  string
	Timeout time.Duration // Per query
	Workers int           // Concurrent chunk queries
	Retries int           // Extra attempts per query on network errors
}

// NewClient creates a client for domain served at server.
func NewClient(server, domain string) *Client {
	return &Client{
		server:  server,
		domain:  strings.ToLower(dns.Fqdn(domain)),
		Timeout: 5 * time.Second,
		Workers: spec.FETCH_WORKERS,
		Retries: 2,
	}
}

// Listing is one entry of the carrier list.
type Listing struct {
	ID   string
	Name string
	Size int
}

// List returns the carriers published on the relay.
func (c *Client) List(ctx context.Context) ([]Listing, error) {
	answers, err := c.query(ctx, "ls."+c.domain)
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, 0, len(answers))
	for _, txt := range answers {
		if len(txt.Txt) < 3 {
			return nil, fmt.Errorf("malformed listing %q", txt.Txt)
		}
		size, err := strconv.Atoi(txt.Txt[2])
		if err != nil {
			return nil, fmt.Errorf("malformed listing size %q", txt.Txt[2])
		}
		listings = append(listings, Listing{ID: txt.Txt[0], Name: txt.Txt[1], Size: size})
	}
	return listings, nil
}

// Manifest fetches the manifest of carrier id.
func (c *Client) Manifest(ctx context.Context, id string) (chunker.Manifest, error) {
	answers, err := c.query(ctx, fmt.Sprintf("m.%s.%s", id, c.domain))
	if err != nil {
		return chunker.Manifest{}, fmt.Errorf("manifest of %s: %w", id, err)
	}
	if len(answers) == 0 {
		return chunker.Manifest{}, fmt.Errorf("manifest of %s: %w", id, ErrNotFound)
	}
	return chunker.ParseManifest(strings.Join(answers[0].Txt, ""))
}

// Fetch downloads, verifies and reassembles carrier id. Progress, if not
// nil, is called after each chunk with the number received so far; calls
// are serialized.
func (c *Client) Fetch(ctx context.Context, id string, progress func(done, total int)) ([]byte, error) {
	want, err := chunker.ParseID(id)
	if err != nil {
		return nil, err
	}
	m, err := c.Manifest(ctx, id)
	if err != nil {
		return nil, err
	}

	chunks := make([]chunker.Chunk, m.Total)
	var (
		mu       sync.Mutex
		received int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Workers, 1))
	for seq := range m.Total {
		g.Go(func() error {
			chunk, err := c.fetchChunk(gctx, want, seq)
			if err != nil {
				return err
			}
			chunks[seq] = chunk
			if progress != nil {
				mu.Lock()
				received++
				progress(received, m.Total)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunker.Reassemble(m, chunks)
}

// fetchChunk retrieves chunk seq and checks that it belongs to carrier id.
func (c *Client) fetchChunk(ctx context.Context, id chunker.ID, seq int) (chunker.Chunk, error) {
	answers, err := c.query(ctx, fmt.Sprintf("%d.c.%s.%s", seq, id, c.domain))
	if err != nil {
		return chunker.Chunk{}, fmt.Errorf("chunk %d: %w", seq, err)
	}
	if len(answers) == 0 {
		return chunker.Chunk{}, fmt.Errorf("chunk %d: %w", seq, ErrNotFound)
	}
	chunk, err := chunker.DecodeChunk(strings.Join(answers[0].Txt, ""))
	if err != nil {
		return chunker.Chunk{}, fmt.Errorf("chunk %d: %w", seq, err)
	}
	if chunk.CarrierID != id {
		return chunker.Chunk{}, fmt.Errorf("chunk %d: %w: server returned carrier %s", seq, chunker.ErrMixed, chunk.CarrierID)
	}
	if int(chunk.Sequence) != seq {
		return chunker.Chunk{}, fmt.Errorf("chunk %d: server returned sequence %d", seq, chunk.Sequence)
	}
	return chunk, nil
}

// query sends a TXT question, retrying network errors and falling back to
// TCP on truncation.
func (c *Client) query(ctx context.Context, name string) ([]*dns.TXT, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	var (
		resp *dns.Msg
		err  error
	)
	for attempt := 0; attempt <= c.Retries; attempt++ {
		resp, err = c.exchange(ctx, m, "udp")
		if err == nil && resp.Truncated {
			resp, err = c.exchange(ctx, m, "tcp")
		}
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	default:
		return nil, fmt.Errorf("%s: %s", name, dns.RcodeToString[resp.Rcode])
	}

	var answers []*dns.TXT
	for _, rr := range resp.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			answers = append(answers, txt)
		}
	}
	return answers, nil
}

func (c *Client) exchange(ctx context.Context, m *dns.Msg, network string) (*dns.Msg, error) {
	dc := &dns.Client{Net: network, Timeout: c.Timeout}
	resp, _, err := dc.ExchangeContext(ctx, m, c.server)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("empty response")
	}
	return resp, nil
}
