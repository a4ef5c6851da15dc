package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/nerrad567/chroma-sync/internal/device"
)

// ServiceWLED is the mDNS service type advertised by WLED controllers.
const ServiceWLED = "_wled._tcp"

// DefaultLEDCount is used when a controller's LED count cannot be read.
const DefaultLEDCount = 30

// ErrQueryFailed is returned when the mDNS query cannot be sent.
var ErrQueryFailed = errors.New("discovery: mdns query failed")

// Logger defines the logging interface used by the Scanner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Found is one controller seen on the network.
type Found struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	MAC      string `json:"mac,omitempty"`
	LEDCount int    `json:"led_count,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Config returns a ready-to-register WLED device config with a new ID.
func (f Found) Config() device.Config {
	leds := f.LEDCount
	if leds <= 0 {
		leds = DefaultLEDCount
	}
	name := f.Name
	if name == "" {
		name = f.Address
	}
	return device.ApplyDefaults(device.Config{
		Name: name,
		Kind: device.KindWLED,
		WLED: &device.WLEDConfig{
			Host:     f.Address,
			HTTPPort: f.Port,
			LEDCount: leds,
		},
	})
}

// queryFunc sends one mDNS query. mdns.Query in production.
type queryFunc func(*mdns.QueryParam) error

// Scanner finds WLED controllers with mDNS and reads their LED count.
type Scanner struct {
	timeout time.Duration
	query   queryFunc
	client  *http.Client
	logger  Logger
}

// NewScanner creates a scanner that listens for answers for timeout.
func NewScanner(timeout time.Duration) *Scanner {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Scanner{
		timeout: timeout,
		query:   mdns.Query,
		client:  &http.Client{Timeout: 2 * time.Second},
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the scanner.
func (s *Scanner) SetLogger(logger Logger) {
	s.logger = logger
}

// Scan queries the network and returns every controller found, sorted by
// name. Controllers whose info endpoint does not answer are still returned
// with a zero LEDCount.
func (s *Scanner) Scan(ctx context.Context) ([]Found, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	queryErr := make(chan error, 1)

	go func() {
		defer close(entries)
		queryErr <- s.query(&mdns.QueryParam{
			Service:             ServiceWLED,
			Domain:              "local",
			Timeout:             s.timeout,
			Entries:             entries,
			DisableIPv6:         true,
			WantUnicastResponse: true,
		})
	}()

	seen := make(map[string]Found)
	for entry := range entries {
		if ctx.Err() != nil {
			continue
		}
		f, ok := fromEntry(entry)
		if !ok {
			continue
		}
		s.logger.Debug("mdns entry", "name", f.Name, "address", f.Address, "port", f.Port)
		seen[f.Address] = f
	}

	if err := <-queryErr; err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	found := make([]Found, 0, len(seen))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, f := range seen {
		wg.Add(1)
		go func(f Found) {
			defer wg.Done()
			if err := s.probe(ctx, &f); err != nil {
				s.logger.Debug("wled info unavailable", "address", f.Address, "error", err)
			}
			mu.Lock()
			found = append(found, f)
			mu.Unlock()
		}(f)
	}
	wg.Wait()

	sort.Slice(found, func(i, j int) bool {
		if found[i].Name != found[j].Name {
			return found[i].Name < found[j].Name
		}
		return found[i].Address < found[j].Address
	})
	s.logger.Info("discovery complete", "service", ServiceWLED, "found", len(found))
	return found, nil
}

func fromEntry(e *mdns.ServiceEntry) (Found, bool) {
	if e == nil || e.AddrV4 == nil {
		return Found{}, false
	}
	port := e.Port
	if port == 0 {
		port = device.DefaultWLEDHTTPPort
	}
	f := Found{
		Name:    instanceName(e.Name),
		Host:    strings.TrimSuffix(e.Host, "."),
		Address: e.AddrV4.String(),
		Port:    port,
	}
	for _, field := range e.InfoFields {
		if v, ok := strings.CutPrefix(field, "mac="); ok {
			f.MAC = v
		}
	}
	return f, true
}

// instanceName strips the service and domain from an mDNS instance name,
// e.g. "desk._wled._tcp.local." becomes "desk".
func instanceName(name string) string {
	if i := strings.Index(name, "."+ServiceWLED); i >= 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, `\ `, " ")
}

// wledInfo is the part of WLED's /json/info answer we read.
type wledInfo struct {
	Name    string `json:"name"`
	Version string `json:"ver"`
	MAC     string `json:"mac"`
	LEDs    struct {
		Count int `json:"count"`
	} `json:"leds"`
}

func (s *Scanner) probe(ctx context.Context, f *Found) error {
	url := "http://" + net.JoinHostPort(f.Address, strconv.Itoa(f.Port)) + "/json/info"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var info wledInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("decoding info: %w", err)
	}

	f.LEDCount = info.LEDs.Count
	f.Version = info.Version
	if info.Name != "" {
		f.Name = info.Name
	}
	if f.MAC == "" {
		f.MAC = info.MAC
	}
	return nil
}
