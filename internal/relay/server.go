// Package relay publishes stego carriers as DNS TXT records and fetches
// them back.
//
// Names served under the relay domain:
//
//	ls.<domain>             one TXT per carrier: id, name, size
//	m.<id>.<domain>         manifest, see chunker.Manifest
//	<seq>.c.<id>.<domain>   chunk <seq>, see chunker.Chunk
package relay

import (
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/faanross/simulacra_ppm/internal/spec"
)

// Server answers TXT queries for one domain from a Store.
type Server struct {
	domain  string // Lowercase FQDN
	store   Store
	ttl     uint32
	listTTL uint32
	logger  *log.Logger
}

// NewServer creates a DNS handler for domain. A nil logger disables query
// logging.
func NewServer(domain string, store Store, ttl uint32, logger *log.Logger) *Server {
	if ttl == 0 {
		ttl = spec.DEFAULT_TTL
	}
	return &Server{
		domain:  strings.ToLower(dns.Fqdn(domain)),
		store:   store,
		ttl:     ttl,
		listTTL: min(ttl, spec.LIST_TTL),
		logger:  logger,
	}
}

// Domain returns the FQDN served.
func (s *Server) Domain() string {
	return s.domain
}

// ServeDNS implements dns.Handler.
func (s *Server) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	msg := new(dns.Msg)
	msg.SetReply(r)
	msg.Authoritative = true

	for _, q := range r.Question {
		rcode := s.answer(q, msg)
		if rcode != dns.RcodeSuccess {
			msg.Rcode = rcode
		}
	}

	if err := w.WriteMsg(msg); err != nil {
		s.logf("⚠️  write failed: %v", err)
	}
}

// answer appends records for q and returns the response code.
func (s *Server) answer(q dns.Question, msg *dns.Msg) int {
	qname := strings.ToLower(q.Name)
	if !dns.IsSubDomain(s.domain, qname) {
		s.logf("Refused: %s", qname)
		return dns.RcodeRefused
	}

	labels := dns.SplitDomainName(strings.TrimSuffix(qname, s.domain))
	values, ttl, err := s.lookup(labels)
	if err != nil {
		s.logf("Not found: %s (%v)", qname, err)
		return dns.RcodeNameError
	}

	// Known name, other type: NOERROR with no answer.
	if q.Qtype != dns.TypeTXT && q.Qtype != dns.TypeANY {
		return dns.RcodeSuccess
	}

	for _, txt := range values {
		msg.Answer = append(msg.Answer, &dns.TXT{
			Hdr: dns.RR_Header{
				Name:   q.Name,
				Rrtype: dns.TypeTXT,
				Class:  dns.ClassINET,
				Ttl:    ttl,
			},
			Txt: txt,
		})
	}
	s.logf("Served: %s (%d records)", qname, len(values))
	return dns.RcodeSuccess
}

// lookup resolves the labels below the relay domain to TXT string sets.
func (s *Server) lookup(labels []string) ([][]string, uint32, error) {
	switch {
	case len(labels) == 1 && labels[0] == "ls":
		var values [][]string
		for _, rec := range s.store.List() {
			values = append(values, []string{rec.ID, rec.Name, strconv.Itoa(rec.Size)})
		}
		return values, s.listTTL, nil

	case len(labels) == 2 && labels[0] == "m":
		rec, err := s.store.Get(labels[1])
		if err != nil {
			return nil, 0, err
		}
		return [][]string{{rec.Manifest}}, s.ttl, nil

	case len(labels) == 3 && labels[1] == "c":
		seq, err := strconv.Atoi(labels[0])
		if err != nil {
			return nil, 0, ErrNotFound
		}
		chunk, err := s.store.Chunk(labels[2], seq)
		if err != nil {
			return nil, 0, err
		}
		return [][]string{{chunk}}, s.ttl, nil
	}
	return nil, 0, errors.New("unknown name")
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
