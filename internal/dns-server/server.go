package dnsserver

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/miekg/dns"

	"github.com/faanross/simulacra_bmp/internal/chunker"
)

// Server answers TXT queries for published stego images:
//
//	m-<id>.<domain>        manifest "TOTAL:CRC32:TIMESTAMP"
//	c-<seq>-<id>.<domain>  base32 chunk
type Server struct {
	domain  string
	ttl     uint32
	storage Storage
	log     *log.Logger

	mu  sync.Mutex
	srv *dns.Server
}

// NewServer creates a server for domain. A nil logger discards output.
func NewServer(domain string, storage Storage, ttl int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		domain:  strings.ToLower(strings.TrimSuffix(domain, ".")),
		ttl:     uint32(ttl),
		storage: storage,
		log:     logger,
	}
}

// Publish splits a stego image into chunks and stores them. Receivers fetch
// it by the returned message's Label.
func (s *Server) Publish(image []byte) (*chunker.Message, error) {
	msg, err := chunker.NewChunker(0).Split(image)
	if err != nil {
		return nil, err
	}

	if err := s.storage.StoreMessage(NewMessage(msg)); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	s.log.Printf("✅ Published %s (%d bytes, %d chunks)", msg.Label(), len(image), len(msg.Chunks))
	return msg, nil
}

// Domain returns the zone the server answers for
func (s *Server) Domain() string {
	return s.domain
}

// ServeDNS implements dns.Handler
func (s *Server) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	msg := new(dns.Msg)
	msg.SetReply(r)
	msg.Authoritative = true

	clientIP := ""
	if addr := w.RemoteAddr(); addr != nil {
		clientIP, _, _ = net.SplitHostPort(addr.String())
	}

	for _, question := range r.Question {
		if question.Qtype != dns.TypeTXT {
			continue
		}

		value, err := s.lookup(question.Name, clientIP)
		if err != nil {
			s.log.Printf("❌ %s: %v", question.Name, err)
			msg.Rcode = dns.RcodeNameError
			continue
		}

		msg.Answer = append(msg.Answer, &dns.TXT{
			Hdr: dns.RR_Header{
				Name:   question.Name,
				Rrtype: dns.TypeTXT,
				Class:  dns.ClassINET,
				Ttl:    s.ttl,
			},
			Txt: []string{value},
		})
	}

	if len(msg.Answer) > 0 {
		msg.Rcode = dns.RcodeSuccess
	}
	w.WriteMsg(msg)
}

func (s *Server) lookup(name, clientIP string) (string, error) {
	q, err := chunker.ParseName(name, s.domain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	if q.Manifest {
		value, err := s.storage.GetManifest(q.Label)
		if err != nil {
			return "", err
		}
		if err := s.storage.MarkAsDelivered(q.Label, clientIP); err != nil {
			s.log.Printf("⚠️  Failed to record delivery of %s: %v", q.Label, err)
		}
		s.log.Printf("📬 Manifest %s served to %s", q.Label, clientIP)
		return value, nil
	}

	return s.storage.GetChunk(q.Label, q.Sequence)
}

// ListenAndServe serves UDP on addr until Shutdown
func (s *Server) ListenAndServe(addr string) error {
	return s.run(&dns.Server{Addr: addr, Net: "udp", Handler: s})
}

// Serve answers queries on an existing packet connection. started, if not
// nil, is called once the server is accepting queries.
func (s *Server) Serve(pc net.PacketConn, started func()) error {
	return s.run(&dns.Server{PacketConn: pc, Net: "udp", Handler: s, NotifyStartedFunc: started})
}

func (s *Server) run(srv *dns.Server) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.srv = srv
	s.mu.Unlock()

	if srv.PacketConn != nil {
		return srv.ActivateAndServe()
	}
	return srv.ListenAndServe()
}

// Shutdown stops a running server
func (s *Server) Shutdown() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return errors.New("server not running")
	}
	return srv.Shutdown()
}
