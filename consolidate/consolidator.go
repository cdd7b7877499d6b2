package consolidate

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
	"github.com/poiesic/masterdb/core"
	"github.com/poiesic/masterdb/storage"
)

// Consolidator elects representatives, mints master IDs and persists
// the result per category.
type Consolidator struct {
	masters   storage.MasterRepository
	policy    Policy
	threshold float64
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Consolidator.
type Option func(*Consolidator) error

// WithPolicy sets the representative policy.
// Default is PolicyFirstByID.
func WithPolicy(policy Policy) Option {
	return func(c *Consolidator) error {
		if _, err := ParsePolicy(string(policy)); err != nil {
			return err
		}
		c.policy = policy
		return nil
	}
}

// WithThreshold records the clustering threshold on each run.
func WithThreshold(threshold float64) Option {
	return func(c *Consolidator) error {
		c.threshold = threshold
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consolidator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "consolidate")
		return nil
	}
}

// NewConsolidator creates a consolidator writing to masters.
func NewConsolidator(masters storage.MasterRepository, opts ...Option) (*Consolidator, error) {
	if masters == nil {
		return nil, ErrRepositoryRequired
	}

	c := &Consolidator{
		masters: masters,
		policy:  PolicyFirstByID,
		logger:  slog.Default().With("component", "consolidate"),
		now:     time.Now,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Policy returns the configured representative policy.
func (c *Consolidator) Policy() Policy {
	return c.policy
}

// Plan computes the masters and assignments of one category without touching
// storage. assignments maps question ID to cluster ID; vectors may be nil,
// in which case PolicyMedoid degrades to the smallest ID and no coherence
// signals are computed.
func (c *Consolidator) Plan(category core.Category, assignments map[string]int, vectors VectorLookup) (*core.Consolidation, error) {
	if err := core.ValidateCategory(category); err != nil {
		return nil, err
	}

	members := make(map[int][]string)
	for qid, cid := range assignments {
		if cid < 0 {
			return nil, fmt.Errorf("%w: %s -> %d", ErrNegativeClusterID, qid, cid)
		}
		members[cid] = append(members[cid], qid)
	}

	clusterIDs := make([]int, 0, len(members))
	for cid := range members {
		clusterIDs = append(clusterIDs, cid)
	}
	sort.Ints(clusterIDs)

	plan := &core.Consolidation{
		RunID:     uuid.New().String(),
		Category:  category,
		Policy:    string(c.policy),
		Threshold: c.threshold,
		CreatedAt: c.now().UTC(),
	}

	counter := 0
	for _, cid := range clusterIDs {
		ids := members[cid]
		if len(ids) == 0 {
			continue
		}
		slices.Sort(ids)

		counter++
		masterID := core.FormatMasterID(category, counter)
		rep := elect(c.policy, ids, vectors)
		centroidDistance, score := coherence(rep, ids, vectors)

		plan.Masters = append(plan.Masters, core.MasterQuestion{
			ID:                       masterID,
			RepresentativeQuestionID: rep,
			Category:                 category,
			ClusterID:                cid,
			ClusterSize:              len(ids),
			CentroidDistance:         centroidDistance,
			CoherenceScore:           score,
		})
		for _, qid := range ids {
			plan.Assignments = append(plan.Assignments, core.Assignment{
				QuestionID:       qid,
				ClusterID:        cid,
				MasterID:         masterID,
				IsRepresentative: qid == rep,
			})
		}
	}

	slices.SortFunc(plan.Assignments, byQuestionID)
	plan.Fingerprint = Fingerprint(plan)

	return plan, nil
}

// Apply persists a plan, superseding the category's previous state.
func (c *Consolidator) Apply(ctx context.Context, plan *core.Consolidation) error {
	if err := c.masters.ReplaceCategory(ctx, plan); err != nil {
		return fmt.Errorf("replace %s: %w", plan.Category, err)
	}
	c.logger.Info("category consolidated",
		"category", plan.Category,
		"run_id", plan.RunID,
		"masters", len(plan.Masters),
		"questions", len(plan.Assignments),
		"fingerprint", plan.Fingerprint)
	return nil
}

// Run plans and applies one category.
func (c *Consolidator) Run(ctx context.Context, category core.Category, assignments map[string]int, vectors VectorLookup) (*core.Consolidation, error) {
	plan, err := c.Plan(category, assignments, vectors)
	if err != nil {
		return nil, err
	}
	if err := c.Apply(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Fingerprint hashes a plan's category, policy and assignments with BLAKE2b-256.
// Plans with identical question -> master mappings share a fingerprint.
func Fingerprint(plan *core.Consolidation) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(plan.Category))
	h.Write([]byte{0})
	h.Write([]byte(plan.Policy))
	h.Write([]byte{0})

	assignments := slices.Clone(plan.Assignments)
	slices.SortFunc(assignments, byQuestionID)
	for _, a := range assignments {
		h.Write([]byte(a.QuestionID))
		h.Write([]byte{0})
		h.Write([]byte(a.MasterID))
		h.Write([]byte{0})
		h.Write([]byte(strconv.Itoa(a.ClusterID)))
		if a.IsRepresentative {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func byQuestionID(a, b core.Assignment) int {
	return strings.Compare(a.QuestionID, b.QuestionID)
}
