package relay

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/faanross/simulacra_ppm/internal/chunker"
)

// ZoneRecords renders rec as TXT records under domain, manifest first.
func ZoneRecords(rec *Record, domain string, ttl uint32) []dns.RR {
	domain = strings.ToLower(dns.Fqdn(domain))
	hdr := func(name string) dns.RR_Header {
		return dns.RR_Header{Name: name, Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: ttl}
	}

	rrs := make([]dns.RR, 0, len(rec.Chunks)+1)
	rrs = append(rrs, &dns.TXT{
		Hdr: hdr(fmt.Sprintf("m.%s.%s", rec.ID, domain)),
		Txt: []string{rec.Manifest},
	})
	for seq, chunk := range rec.Chunks {
		rrs = append(rrs, &dns.TXT{
			Hdr: hdr(fmt.Sprintf("%d.c.%s.%s", seq, rec.ID, domain)),
			Txt: []string{chunk},
		})
	}
	return rrs
}

// WriteZone writes the records of all carriers in zone file syntax.
func WriteZone(w io.Writer, recs []*Record, domain string, ttl uint32) error {
	for _, rec := range recs {
		if _, err := fmt.Fprintf(w, "; carrier %s (%s, %d bytes)\n", rec.ID, rec.Name, rec.Size); err != nil {
			return err
		}
		for _, rr := range ZoneRecords(rec, domain, ttl) {
			if _, err := fmt.Fprintln(w, rr.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadZone parses TXT records written by WriteZone back into records. Names
// outside domain and non-TXT records are ignored. Every chunk is decoded and
// the carrier reassembled so a damaged zone is rejected up front.
func LoadZone(r io.Reader, domain string) ([]*Record, error) {
	domain = strings.ToLower(dns.Fqdn(domain))

	type partial struct {
		manifest string
		chunks   map[int]string
	}
	found := make(map[string]*partial)
	get := func(id string) *partial {
		if p, ok := found[id]; ok {
			return p
		}
		p := &partial{chunks: make(map[int]string)}
		found[id] = p
		return p
	}

	zp := dns.NewZoneParser(r, domain, "")
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		txt, isTXT := rr.(*dns.TXT)
		name := strings.ToLower(rr.Header().Name)
		if !isTXT || !dns.IsSubDomain(domain, name) {
			continue
		}
		labels := dns.SplitDomainName(strings.TrimSuffix(name, domain))
		value := strings.Join(txt.Txt, "")
		switch {
		case len(labels) == 2 && labels[0] == "m":
			get(labels[1]).manifest = value
		case len(labels) == 3 && labels[1] == "c":
			seq, err := strconv.Atoi(labels[0])
			if err != nil {
				return nil, fmt.Errorf("zone: bad chunk name %s", name)
			}
			get(labels[2]).chunks[seq] = value
		}
	}
	if err := zp.Err(); err != nil {
		return nil, fmt.Errorf("zone: %w", err)
	}

	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recs := make([]*Record, 0, len(ids))
	for _, id := range ids {
		p := found[id]
		m, err := chunker.ParseManifest(p.manifest)
		if err != nil {
			return nil, fmt.Errorf("zone: carrier %s: %w", id, err)
		}

		rec := &Record{ID: id, Name: "zone", Manifest: p.manifest, Size: m.Size, CreatedAt: time.Now()}
		decoded := make([]chunker.Chunk, 0, len(p.chunks))
		for seq := range m.Total {
			encoded, ok := p.chunks[seq]
			if !ok {
				return nil, fmt.Errorf("zone: carrier %s: %w: chunk %d", id, chunker.ErrIncomplete, seq)
			}
			chunk, err := chunker.DecodeChunk(encoded)
			if err != nil {
				return nil, fmt.Errorf("zone: carrier %s: %w", id, err)
			}
			rec.Chunks = append(rec.Chunks, encoded)
			decoded = append(decoded, chunk)
		}
		if _, err := chunker.Reassemble(m, decoded); err != nil {
			return nil, fmt.Errorf("zone: carrier %s: %w", id, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
