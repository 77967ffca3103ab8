// The session orchestrates a plan against a fixed set of datasets.
//
// It owns the current lineage generation, the number of groups, the
// depth and the named results computed by earlier commands. Commands
// never touch these directly: each mutating call replaces the whole
// state at once so a failing command leaves the previous state
// intact.

package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/protocols"
	"www.velocidex.com/golang/vgroup/types"
)

// A Dataset is one remote index session covering a time range.
type Dataset struct {
	Name    string
	Session types.IndexSession
	Start   time.Time
	End     time.Time
}

// An immutable snapshot of the grouping state.
type State struct {
	Keys      grouper.KeySet
	NumGroups int
	Depth     int
}

type Session struct {
	mu sync.Mutex

	config  Config
	logger  log.Logger
	metrics *metrics
	stats   *types.Stats
	regexes *protocols.RegexCache

	datasets []*Dataset
	by_name  map[string]*Dataset

	state   State
	lookups map[string]*SavedGroupStat
}

func New(config Config, datasets ...*Dataset) (*Session, error) {
	if config.GroupLimit <= 0 {
		config.GroupLimit = DefaultConfig().GroupLimit
	}
	if config.BootstrapBufferLimit <= 0 {
		config.BootstrapBufferLimit = DefaultConfig().BootstrapBufferLimit
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	result := &Session{
		config:  config,
		logger:  logger,
		metrics: newMetrics(config.Registerer),
		stats:   &types.Stats{},
		regexes: protocols.NewRegexCache(),
		by_name: make(map[string]*Dataset),
		lookups: make(map[string]*SavedGroupStat),
	}

	for _, dataset := range datasets {
		if dataset.Session == nil {
			return nil, types.Contract("dataset %v has no session", dataset.Name)
		}
		_, pres := result.by_name[dataset.Name]
		if pres {
			return nil, types.Contract("dataset %v given twice", dataset.Name)
		}
		result.by_name[dataset.Name] = dataset
		result.datasets = append(result.datasets, dataset)
	}

	// Every document starts in the single initial group.
	initial, err := grouper.Create(grouper.NewLineage().Root(),
		[]int{0, 0}, []grouper.GroupKey{nil, grouper.InitialKey{}})
	if err != nil {
		return nil, err
	}
	result.state = State{Keys: initial, NumGroups: 1}

	return result, nil
}

func (self *Session) Snapshot() State {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.state
}

func (self *Session) NumGroups() int {
	return self.Snapshot().NumGroups
}

func (self *Session) Depth() int {
	return self.Snapshot().Depth
}

func (self *Session) Keys() grouper.KeySet {
	return self.Snapshot().Keys
}

func (self *Session) Config() Config {
	return self.config
}

func (self *Session) Logger() log.Logger {
	return self.logger
}

func (self *Session) Stats() *types.Stats {
	return self.stats
}

func (self *Session) Regexes() *protocols.RegexCache {
	return self.regexes
}

// Replace the grouping state. The number of groups always follows
// the generation.
func (self *Session) setState(keys grouper.KeySet, depth int) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.state = State{
		Keys:      keys,
		NumGroups: keys.Count(),
		Depth:     depth,
	}

	self.stats.IncGroupsCreated(keys.Count())
	self.metrics.groups_created.Add(float64(keys.Count()))
}

func (self *Session) CheckGroupLimit(num_groups int) error {
	if num_groups > self.config.GroupLimit {
		return errors.Wrapf(types.ErrLimitExceeded,
			"%s groups exceeds the limit of %s",
			humanize.Comma(int64(num_groups)),
			humanize.Comma(int64(self.config.GroupLimit)))
	}
	return nil
}

func (self *Session) CheckBootstrapBuffer(cells int) error {
	if cells > self.config.BootstrapBufferLimit {
		return errors.Wrapf(types.ErrLimitExceeded,
			"bootstrap needs %s cells which exceeds the limit of %s",
			humanize.Comma(int64(cells)),
			humanize.Comma(int64(self.config.BootstrapBufferLimit)))
	}
	return nil
}

func (self *Session) Datasets() []*Dataset {
	return append([]*Dataset{}, self.datasets...)
}

func (self *Session) DatasetNames() []string {
	result := make([]string, 0, len(self.datasets))
	for _, dataset := range self.datasets {
		result = append(result, dataset.Name)
	}
	return result
}

func (self *Session) Dataset(name string) (*Dataset, error) {
	dataset, pres := self.by_name[name]
	if !pres {
		return nil, errors.Wrapf(types.ErrNotFound, "dataset %v", name)
	}
	return dataset, nil
}

// Resolve a scope of dataset names. An empty scope means every
// dataset.
func (self *Session) Scope(names []string) ([]*Dataset, error) {
	if len(names) == 0 {
		return self.Datasets(), nil
	}

	result := make([]*Dataset, 0, len(names))
	for _, name := range names {
		dataset, err := self.Dataset(name)
		if err != nil {
			return nil, err
		}
		result = append(result, dataset)
	}
	return result, nil
}

func ScopeNames(scope []*Dataset) []string {
	result := make([]string, 0, len(scope))
	for _, dataset := range scope {
		result = append(result, dataset.Name)
	}
	sort.Strings(result)
	return result
}

// The earliest start and latest end over all datasets.
func (self *Session) TimeBounds() (time.Time, time.Time) {
	var start, end time.Time
	for _, dataset := range self.datasets {
		if start.IsZero() || (!dataset.Start.IsZero() && dataset.Start.Before(start)) {
			start = dataset.Start
		}
		if dataset.End.After(end) {
			end = dataset.End
		}
	}
	return start, end
}

// Run fn on every dataset in scope. Calls may run concurrently but
// all are complete when this returns.
func (self *Session) ForEachDataset(ctx context.Context, scope []*Dataset,
	fn func(ctx context.Context, dataset *Dataset) error) error {
	if !self.config.ParallelSessions {
		for _, dataset := range scope {
			err := fn(ctx, dataset)
			if err != nil {
				return errors.Wrapf(err, "dataset %v", dataset.Name)
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, dataset := range scope {
		dataset := dataset
		g.Go(func() error {
			err := fn(ctx, dataset)
			if err != nil {
				return errors.Wrapf(err, "dataset %v", dataset.Name)
			}
			return nil
		})
	}
	return g.Wait()
}

func (self *Session) sessions() map[string]types.IndexSession {
	result := make(map[string]types.IndexSession)
	for _, dataset := range self.datasets {
		result[dataset.Name] = dataset.Session
	}
	return result
}

func (self *Session) Close() error {
	var result error
	for _, dataset := range self.datasets {
		err := dataset.Session.Close()
		if err != nil && result == nil {
			result = errors.Wrapf(err, "close %v", dataset.Name)
		}
	}
	return result
}
