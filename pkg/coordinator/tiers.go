package coordinator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/storage"
)

// ErrTierUnavailable is returned when a lazily loaded tier cannot be opened,
// either because the open failed or because its breaker is open.
var ErrTierUnavailable = errors.New("coordinator: tier unavailable")

// ErrInvalidQuarter is returned for archive names not of the form YYYY-Qn.
var ErrInvalidQuarter = errors.New("coordinator: invalid quarter")

var quarterPattern = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)

// QuarterOf returns the archive quarter of t in UTC, e.g. "2024-Q3".
func QuarterOf(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
}

// QuarterOfMillis is QuarterOf for a Unix millisecond timestamp.
func QuarterOfMillis(ms int64) string {
	return QuarterOf(time.UnixMilli(ms))
}

// ParseQuarter splits "YYYY-Qn" into its year and quarter.
func ParseQuarter(s string) (year, quarter int, err error) {
	m := quarterPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidQuarter, s)
	}
	year, _ = strconv.Atoi(m[1])
	quarter, _ = strconv.Atoi(m[2])
	return year, quarter, nil
}

// BreakerSettings tunes the circuit breaker guarding each lazy tier.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failed opens that trips the
	// breaker.
	MaxFailures uint32
	// OpenTimeout is how long a tripped breaker rejects opens before letting
	// one through again.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings trips after 3 failed opens and retries after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MaxFailures: 3, OpenTimeout: 30 * time.Second}
}

func newBreaker(name string, s BreakerSettings, log *zap.Logger) *gobreaker.CircuitBreaker {
	if s.MaxFailures == 0 {
		s = DefaultBreakerSettings()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("tier breaker state changed",
				zap.String("tier", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})
}

// lazyTier is a tier slot opened on first use.
type lazyTier struct {
	name    string
	open    func() (*storage.StorageManager, error)
	breaker *gobreaker.CircuitBreaker
	onLoad  func(name string)

	mu  sync.RWMutex
	mgr *storage.StorageManager
}

func newLazyTier(name string, open func() (*storage.StorageManager, error), bs BreakerSettings, log *zap.Logger, onLoad func(string)) *lazyTier {
	return &lazyTier{
		name:    name,
		open:    open,
		breaker: newBreaker(name, bs, log),
		onLoad:  onLoad,
	}
}

// Get returns the tier's manager, opening it if needed.
func (l *lazyTier) Get() (*storage.StorageManager, error) {
	if m := l.Loaded(); m != nil {
		return m, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mgr != nil {
		return l.mgr, nil
	}
	v, err := l.breaker.Execute(func() (any, error) {
		return l.open()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTierUnavailable, l.name, err)
	}
	l.mgr = v.(*storage.StorageManager)
	if l.onLoad != nil {
		l.onLoad(l.name)
	}
	return l.mgr, nil
}

// Loaded returns the manager if already open, else nil.
func (l *lazyTier) Loaded() *storage.StorageManager {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mgr
}

func (l *lazyTier) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mgr == nil {
		return nil
	}
	err := l.mgr.Close()
	l.mgr = nil
	return err
}

// archiveSet holds the quarterly archive tiers of one database type. Each
// quarter is its own store under {type}/archive/{quarter}.
type archiveSet struct {
	root     string
	inMemory bool
	open     func(quarter string) (*storage.StorageManager, error)
	newTier  func(name string, open func() (*storage.StorageManager, error)) *lazyTier

	mu       sync.Mutex
	quarters map[string]*lazyTier
}

func (a *archiveSet) tier(quarter string) (*lazyTier, error) {
	if _, _, err := ParseQuarter(quarter); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.quarters[quarter]
	if !ok {
		t = a.newTier(filepath.Base(filepath.Dir(a.root))+"/archive/"+quarter, func() (*storage.StorageManager, error) {
			return a.open(quarter)
		})
		a.quarters[quarter] = t
	}
	return t, nil
}

// GetOrLoad returns the manager of quarter, opening it if needed.
func (a *archiveSet) GetOrLoad(quarter string) (*storage.StorageManager, error) {
	t, err := a.tier(quarter)
	if err != nil {
		return nil, err
	}
	return t.Get()
}

// Loaded returns the open quarters, newest first.
func (a *archiveSet) Loaded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for q, t := range a.quarters {
		if t.Loaded() != nil {
			out = append(out, q)
		}
	}
	sortQuarters(out)
	return out
}

// Known returns every quarter that is open or present on disk, newest
// first.
func (a *archiveSet) Known() []string {
	seen := make(map[string]struct{})
	a.mu.Lock()
	for q := range a.quarters {
		seen[q] = struct{}{}
	}
	a.mu.Unlock()

	if !a.inMemory {
		entries, err := os.ReadDir(a.root)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() && quarterPattern.MatchString(e.Name()) {
					seen[e.Name()] = struct{}{}
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sortQuarters(out)
	return out
}

func (a *archiveSet) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	for _, t := range a.quarters {
		err = multierr.Append(err, t.Close())
	}
	return err
}

// sortQuarters orders YYYY-Qn names newest first. The format sorts
// lexically.
func sortQuarters(qs []string) {
	slices.Sort(qs)
	slices.Reverse(qs)
}
