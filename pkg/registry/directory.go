package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netring-io/netring/pkg/apierrors"
	"github.com/netring-io/netring/pkg/store"
)

const (
	memberKeyPrefix  = "netring:member:"
	metricsKeyPrefix = "netring:metrics:"
)

func memberKey(instanceID string) string  { return memberKeyPrefix + instanceID }
func metricsKey(instanceID string) string { return metricsKeyPrefix + instanceID }

// Directory is the registry's membership store, wrapping an abstract
// store.Store with the record lifecycle spec.md §3/§4.1 describes.
type Directory struct {
	store  store.Store
	logger *zap.Logger

	memberTTL         time.Duration
	deregisteredGrace time.Duration
	metricsPushEvery  time.Duration

	analysis *locationTracker
}

// NewDirectory builds a Directory over s. metricsPushEvery is the
// member-side push interval used to size the metrics TTL (2x, per
// spec.md §4.3's key layout table).
func NewDirectory(s store.Store, logger *zap.Logger, memberTTL, deregisteredGrace, metricsPushEvery time.Duration) *Directory {
	return &Directory{
		store:             s,
		logger:            logger,
		memberTTL:         memberTTL,
		deregisteredGrace: deregisteredGrace,
		metricsPushEvery:  metricsPushEvery,
		analysis:          newLocationTracker(),
	}
}

// Register implements spec.md §4.1's registration contract: omitted
// instance_id generates one, a known id upserts (preserving
// registered_at), an unknown id inserts.
func (d *Directory) Register(ctx context.Context, instanceID, location, ip string, port int) (Member, error) {
	if location == "" {
		return Member{}, apierrors.NewInvalidInput("location", "location must not be empty")
	}
	if port < 1 || port > 65535 {
		return Member{}, apierrors.NewInvalidInput("port", "port must be in [1, 65535]")
	}
	if net.ParseIP(ip) == nil {
		return Member{}, apierrors.NewInvalidInput("ip", "ip is not a valid address")
	}

	now := time.Now().Unix()
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	existing, found, err := d.get(ctx, instanceID)
	if err != nil {
		return Member{}, err
	}

	m := Member{
		InstanceID:   instanceID,
		Location:     location,
		IP:           ip,
		Port:         port,
		RegisteredAt: now,
		LastSeen:     now,
		Status:       StatusActive,
	}
	if found {
		m.RegisteredAt = existing.RegisteredAt
	}

	if err := d.put(ctx, m); err != nil {
		return Member{}, err
	}
	return m, nil
}

// Heartbeat implements spec.md §4.1's heartbeat contract.
func (d *Directory) Heartbeat(ctx context.Context, instanceID string) error {
	m, found, err := d.get(ctx, instanceID)
	if err != nil {
		return err
	}
	if !found {
		return apierrors.NewNotFound("member", instanceID)
	}
	if m.Status == StatusDeregistered {
		return apierrors.NewGone("member", instanceID)
	}
	m.LastSeen = time.Now().Unix()
	return d.put(ctx, m)
}

// Deregister implements spec.md §4.1's deregister contract: idempotent,
// first call's timestamp wins.
func (d *Directory) Deregister(ctx context.Context, instanceID string) error {
	m, found, err := d.get(ctx, instanceID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	if m.Status == StatusDeregistered {
		return nil
	}
	now := time.Now().Unix()
	m.Status = StatusDeregistered
	m.DeregisteredAt = &now
	return d.put(ctx, m)
}

// ReportMetrics accepts a member's pushed snapshot wholesale,
// last-writer-wins, per spec.md §4.1's metrics push contract.
func (d *Directory) ReportMetrics(ctx context.Context, instanceID string, snapshot json.RawMessage) error {
	m, found, err := d.get(ctx, instanceID)
	if err != nil {
		return err
	}
	if !found || m.Status == StatusDeregistered {
		return apierrors.NewNotFound("member", instanceID)
	}

	key := metricsKey(instanceID)
	if err := d.store.Set(ctx, key, snapshot, 2*d.metricsPushEvery); err != nil {
		return apierrors.NewTransient("store.set_metrics", err)
	}
	return nil
}

// Members returns every record with status=active, plus deregistered
// records still inside the grace window, per spec.md §4.1's read API.
func (d *Directory) Members(ctx context.Context) ([]Member, error) {
	keys, err := d.store.Scan(ctx, memberKeyPrefix)
	if err != nil {
		return nil, apierrors.NewTransient("store.scan_members", err)
	}

	members := make([]Member, 0, len(keys))
	for _, k := range keys {
		raw, ok, err := d.store.Get(ctx, k)
		if err != nil {
			return nil, apierrors.NewTransient("store.get_member", err)
		}
		if !ok {
			continue
		}
		var m Member
		if err := json.Unmarshal(raw, &m); err != nil {
			d.logger.Warn("skipping unparseable member record", zap.String("key", k), zap.Error(err))
			continue
		}
		members = append(members, m)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].InstanceID < members[j].InstanceID })
	return members, nil
}

// MetricsSnapshots returns the union of every member's last-pushed
// metrics snapshot, keyed by instance id.
func (d *Directory) MetricsSnapshots(ctx context.Context) (map[string]json.RawMessage, error) {
	keys, err := d.store.Scan(ctx, metricsKeyPrefix)
	if err != nil {
		return nil, apierrors.NewTransient("store.scan_metrics", err)
	}

	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		raw, ok, err := d.store.Get(ctx, k)
		if err != nil {
			return nil, apierrors.NewTransient("store.get_metrics", err)
		}
		if !ok {
			continue
		}
		instanceID := strings.TrimPrefix(k, metricsKeyPrefix)
		out[instanceID] = json.RawMessage(raw)
	}
	return out, nil
}

// CleanupSweep runs one pass of spec.md §4.1's cleanup sweep: active
// records past member_ttl are marked deregistered, deregistered
// records past deregistered_grace are purged.
func (d *Directory) CleanupSweep(ctx context.Context) error {
	members, err := d.Members(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, m := range members {
		switch m.Status {
		case StatusActive:
			if now.Sub(time.Unix(m.LastSeen, 0)) > d.memberTTL {
				ts := now.Unix()
				m.Status = StatusDeregistered
				m.DeregisteredAt = &ts
				if err := d.put(ctx, m); err != nil {
					d.logger.Warn("cleanup: failed to mark member deregistered",
						zap.String("instance_id", m.InstanceID), zap.Error(err))
				}
			}
		case StatusDeregistered:
			if m.DeregisteredAt != nil && now.Sub(time.Unix(*m.DeregisteredAt, 0)) > d.deregisteredGrace {
				if err := d.store.Delete(ctx, memberKey(m.InstanceID)); err != nil {
					d.logger.Warn("cleanup: failed to purge member",
						zap.String("instance_id", m.InstanceID), zap.Error(err))
				}
			}
		}
	}
	return nil
}

// Clear deletes every member and metrics record the store holds, for
// the admin-guarded /clear endpoint. It returns the number of keys
// deleted.
func (d *Directory) Clear(ctx context.Context) (int, error) {
	memberKeys, err := d.store.Scan(ctx, memberKeyPrefix)
	if err != nil {
		return 0, apierrors.NewTransient("store.scan_members", err)
	}
	metricsKeys, err := d.store.Scan(ctx, metricsKeyPrefix)
	if err != nil {
		return 0, apierrors.NewTransient("store.scan_metrics", err)
	}

	deleted := 0
	for _, k := range append(memberKeys, metricsKeys...) {
		if err := d.store.Delete(ctx, k); err != nil {
			return deleted, apierrors.NewTransient("store.delete", err)
		}
		deleted++
	}
	return deleted, nil
}

func (d *Directory) get(ctx context.Context, instanceID string) (Member, bool, error) {
	raw, ok, err := d.store.Get(ctx, memberKey(instanceID))
	if err != nil {
		return Member{}, false, apierrors.NewTransient("store.get_member", err)
	}
	if !ok {
		return Member{}, false, nil
	}
	var m Member
	if err := json.Unmarshal(raw, &m); err != nil {
		return Member{}, false, fmt.Errorf("corrupt member record %q: %w", instanceID, err)
	}
	return m, true, nil
}

func (d *Directory) put(ctx context.Context, m Member) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal member record %q: %w", m.InstanceID, err)
	}
	ttl := d.memberTTL + d.deregisteredGrace
	if err := d.store.Set(ctx, memberKey(m.InstanceID), raw, ttl); err != nil {
		return apierrors.NewTransient("store.set_member", err)
	}
	return nil
}
