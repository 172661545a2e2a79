package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/secmc/blockparty/plugin/access"
	"github.com/secmc/blockparty/plugin/combo"
	"github.com/secmc/blockparty/plugin/message"
	"github.com/secmc/blockparty/plugin/mining"
	"github.com/secmc/blockparty/plugin/region"
	"github.com/secmc/blockparty/plugin/regen"
	"github.com/secmc/blockparty/plugin/reward"
	"github.com/secmc/blockparty/plugin/session"
	"gopkg.in/yaml.v2"
)

const tick = 50 * time.Millisecond

// Snapshot is one consistent read of every configuration file.
type Snapshot struct {
	Session        session.Config
	Combo          combo.Config
	Regen          regen.Config
	Rewards        reward.Table
	Blocks         mining.Blocks
	Regions        region.Set
	RegionSettings region.Settings
	Access         access.Config
	Messages       *message.Catalog
}

// Settings returns the part of the snapshot the mining service consumes.
func (s *Snapshot) Settings() mining.Settings {
	return mining.Settings{
		Session: s.Session,
		Combo:   s.Combo,
		Regen:   s.Regen,
		Rewards: s.Rewards,
		Blocks:  s.Blocks,
		Regions: region.NewValidator(s.RegionSettings, s.Regions),
	}
}

// Load reads the configuration files in dir. Missing files are created with
// their defaults. Invalid values are logged and replaced by defaults; only
// I/O and decode errors are returned.
func Load(dir string, log *slog.Logger) (*Snapshot, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "config")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	cfg := defaultMain()
	if err := readOrCreate(filepath.Join(dir, MainFile), &cfg, defaultMain(), log); err != nil {
		return nil, err
	}
	blocks := blocksFile{Rewards: defaultRewards()}
	if err := readOrCreate(filepath.Join(dir, BlocksFile), &blocks, defaultBlocks(), log); err != nil {
		return nil, err
	}
	if blocks.MinableBlocks == nil {
		blocks.MinableBlocks = defaultBlocks().MinableBlocks
	}
	var msgs messagesFile
	if err := readOrCreate(filepath.Join(dir, MessagesFile), &msgs, defaultMessages(), log); err != nil {
		return nil, err
	}
	var regions regionsFile
	if err := readOrCreate(filepath.Join(dir, RegionsFile), &regions, regionsFile{Regions: map[string]regionEntry{}}, log); err != nil {
		return nil, err
	}

	c := converter{log: log}
	snap := &Snapshot{
		Session:        c.session(cfg.Settings),
		Combo:          c.combo(cfg.Combo),
		Regen:          c.regen(cfg.Regeneration),
		Rewards:        c.rewards(blocks.Rewards),
		Blocks:         c.blocks(blocks.MinableBlocks),
		Regions:        c.regions(regions.Regions),
		RegionSettings: region.Settings{Enabled: cfg.Regions.Enabled, Allowed: cfg.Regions.Allowed, Denied: cfg.Regions.Denied},
		Access:         c.access(cfg.AccessItem),
		Messages:       message.NewCatalog(log, msgs.Prefix, flatten("", msgs.Messages)),
	}
	log.Info("configuration loaded", "dir", dir, "blocks", len(snap.Blocks), "regions", len(snap.Regions))
	return snap, nil
}

// readOrCreate decodes path over target. If path does not exist, def is
// written there and target is left as it is.
func readOrCreate(path string, target any, def any, log *slog.Logger) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := writeDefault(path, def); err != nil {
			return err
		}
		log.Info("wrote default config", "file", filepath.Base(path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeDefault(path string, def any) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode default %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default %s: %w", filepath.Base(path), err)
	}
	return nil
}

// BlockName normalises a configured block or item name: lower case, spaces
// to underscores and a minecraft: namespace when none is given.
func BlockName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	if s != "" && !strings.Contains(s, ":") {
		s = "minecraft:" + s
	}
	return s
}

type converter struct {
	log *slog.Logger
}

func (c converter) warn(key string, got any, using any) {
	c.log.Warn("invalid config value, using default", "key", key, "value", got, "default", using)
}

func (c converter) session(s settingsSection) session.Config {
	def := defaultMain().Settings
	if s.SessionDuration <= 0 {
		c.warn("settings.mining-session-duration", s.SessionDuration, def.SessionDuration)
		s.SessionDuration = def.SessionDuration
	}
	if s.TimerUpdateFrequency <= 0 {
		c.warn("settings.timer-update-frequency", s.TimerUpdateFrequency, def.TimerUpdateFrequency)
		s.TimerUpdateFrequency = def.TimerUpdateFrequency
	}
	cfg := session.Config{
		Duration:      time.Duration(s.SessionDuration) * time.Second,
		ShowTimer:     s.ShowTimer,
		TimerInterval: time.Duration(s.TimerUpdateFrequency) * tick,
	}
	for _, w := range s.Warnings {
		if w <= 0 || w >= s.SessionDuration {
			c.log.Warn("ignoring session warning outside the session", "key", "settings.warnings", "value", w)
			continue
		}
		cfg.Warnings = append(cfg.Warnings, time.Duration(w)*time.Second)
	}
	return cfg
}

func (c converter) combo(s comboSection) combo.Config {
	def := defaultMain().Combo
	if s.ExpiryTime <= 0 {
		c.warn("combo.expiry-time", s.ExpiryTime, def.ExpiryTime)
		s.ExpiryTime = def.ExpiryTime
	}
	if s.WarningTime < 0 || s.WarningTime >= s.ExpiryTime {
		c.warn("combo.warning-time", s.WarningTime, min(def.WarningTime, s.ExpiryTime-1))
		s.WarningTime = min(def.WarningTime, s.ExpiryTime-1)
	}
	if s.BaseMultiplier < 0 {
		c.warn("combo.base-multiplier", s.BaseMultiplier, def.BaseMultiplier)
		s.BaseMultiplier = def.BaseMultiplier
	}
	if s.LevelThreshold <= 0 {
		c.warn("combo.level-threshold", s.LevelThreshold, def.LevelThreshold)
		s.LevelThreshold = def.LevelThreshold
	}
	if s.MaxLevel <= 0 {
		c.warn("combo.max-level", s.MaxLevel, def.MaxLevel)
		s.MaxLevel = def.MaxLevel
	}
	return combo.Config{
		Enabled:        s.Enabled,
		Expiry:         time.Duration(s.ExpiryTime) * time.Second,
		Warning:        time.Duration(s.WarningTime) * time.Second,
		BaseMultiplier: s.BaseMultiplier,
		LevelThreshold: s.LevelThreshold,
		MaxLevel:       s.MaxLevel,
		UseSound:       s.UseSound,
		UseParticles:   s.UseParticles,
		CheckInterval:  combo.DefaultConfig().CheckInterval,
	}
}

func (c converter) regen(s regenSection) regen.Config {
	def := defaultMain().Regeneration
	if s.MinTime < 0 || s.MaxTime < 0 || s.MinTime > s.MaxTime {
		c.log.Warn("invalid regeneration window, using default", "min-time", s.MinTime, "max-time", s.MaxTime)
		s.MinTime, s.MaxTime = def.MinTime, def.MaxTime
	}
	mode, ok := regen.ParseMode(s.DefaultType)
	if !ok {
		c.warn("regeneration.default-type", s.DefaultType, regen.RandomDelay)
	}
	if s.MaxVeinSize < 1 {
		c.warn("regeneration.max-vein-size", s.MaxVeinSize, def.MaxVeinSize)
		s.MaxVeinSize = def.MaxVeinSize
	}
	if s.AnimationSteps <= 0 {
		c.warn("regeneration.animation-steps", s.AnimationSteps, def.AnimationSteps)
		s.AnimationSteps = def.AnimationSteps
	}
	if s.AnimationInterval <= 0 {
		c.warn("regeneration.animation-interval", s.AnimationInterval, def.AnimationInterval)
		s.AnimationInterval = def.AnimationInterval
	}

	base := regen.Policy{
		MinDelay:   time.Duration(s.MinTime) * time.Second,
		MaxDelay:   time.Duration(s.MaxTime) * time.Second,
		UseEffects: s.UseEffects,
		UseSound:   s.UseSound,
		Mode:       mode,
	}
	cfg := regen.Config{
		Default:           base,
		Materials:         make(map[string]regen.Policy, len(s.Materials)),
		Vein:              s.VeinMining,
		MaxVeinSize:       s.MaxVeinSize,
		VeinClear:         s.VeinClear,
		AnimationSteps:    s.AnimationSteps,
		AnimationInterval: time.Duration(s.AnimationInterval) * tick,
	}
	for _, m := range s.VeinMaterials {
		cfg.VeinMaterials = append(cfg.VeinMaterials, BlockName(m))
	}
	for name, o := range s.Materials {
		key := "regeneration.materials." + name
		p := base
		if o.MinTime != nil {
			p.MinDelay = time.Duration(*o.MinTime) * time.Second
		}
		if o.MaxTime != nil {
			p.MaxDelay = time.Duration(*o.MaxTime) * time.Second
		}
		if p.MinDelay < 0 || p.MinDelay > p.MaxDelay {
			c.log.Warn("invalid regeneration window, using section values", "key", key, "min", p.MinDelay, "max", p.MaxDelay)
			p.MinDelay, p.MaxDelay = base.MinDelay, base.MaxDelay
		}
		if o.UseEffects != nil {
			p.UseEffects = *o.UseEffects
		}
		if o.UseSound != nil {
			p.UseSound = *o.UseSound
		}
		if o.Type != nil {
			if m, ok := regen.ParseMode(*o.Type); ok {
				p.Mode = m
			} else {
				c.warn(key+".type", *o.Type, base.Mode)
			}
		}
		cfg.Materials[BlockName(name)] = p
	}
	return cfg
}

func (c converter) blocks(in map[string]blockEntry) mining.Blocks {
	out := make(mining.Blocks, len(in))
	for name, e := range in {
		b := mining.Block{Enabled: true, RewardChance: 0.5, DropVanilla: e.DropVanilla}
		if e.Enabled != nil {
			b.Enabled = *e.Enabled
		}
		if e.RewardChance != nil {
			b.RewardChance = c.chance("minable-blocks."+name+".reward-chance", *e.RewardChance, 0.5)
		}
		out[BlockName(name)] = b
	}
	return out
}

func (c converter) chance(key string, v, def float64) float64 {
	if v < 0 || v > 1 {
		c.warn(key, v, def)
		return def
	}
	return v
}

func (c converter) rewards(s rewardsSection) reward.Table {
	def := defaultRewards()
	t := reward.Table{
		Weights: []reward.Weight{
			{Category: reward.CategoryTiered, Enabled: s.TieredItems.Enabled, Chance: c.chance("rewards.tiered-items.chance", s.TieredItems.Chance, def.TieredItems.Chance)},
			{Category: reward.CategoryKey, Enabled: s.CrateKeys.Enabled, Chance: c.chance("rewards.crate-keys.chance", s.CrateKeys.Chance, def.CrateKeys.Chance)},
			{Category: reward.CategoryPlain, Enabled: s.VanillaItems.Enabled, Chance: c.chance("rewards.vanilla-items.chance", s.VanillaItems.Chance, def.VanillaItems.Chance)},
		},
	}
	for _, it := range s.TieredItems.Items {
		if it.Item == "" {
			c.log.Warn("skipping tiered reward without item", "id", it.ID)
			continue
		}
		t.Tiered = append(t.Tiered, reward.Candidate[reward.TieredItem]{
			Weight:  it.Chance,
			Payload: reward.TieredItem{Type: it.Type, ID: it.ID, Item: BlockName(it.Item)},
		})
	}
	for _, k := range s.CrateKeys.Keys {
		t.Keys = append(t.Keys, reward.Candidate[reward.CurrencyKey]{
			Weight:  k.Chance,
			Payload: reward.CurrencyKey{Name: k.Name, Command: k.Command, Message: k.Message},
		})
	}
	for _, it := range s.VanillaItems.Items {
		lo, hi := it.MinAmount, it.MaxAmount
		if lo < 1 || hi < lo {
			c.log.Warn("invalid reward amount, using 1", "material", it.Material, "min-amount", lo, "max-amount", hi)
			lo, hi = 1, 1
		}
		t.Plain = append(t.Plain, reward.Candidate[reward.PlainItem]{
			Weight:  it.Chance,
			Payload: reward.PlainItem{Item: BlockName(it.Material), Min: lo, Max: hi},
		})
	}
	return t
}

func (c converter) regions(in map[string]regionEntry) region.Set {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	set := make(region.Set, 0, len(names))
	for _, name := range names {
		e := in[name]
		if e.World == "" {
			c.log.Warn("skipping region without world", "region", name)
			continue
		}
		set = append(set, region.New(strings.ToLower(name), e.World,
			[3]int{e.Min.X, e.Min.Y, e.Min.Z},
			[3]int{e.Max.X, e.Max.Y, e.Max.Z},
		))
	}
	return set
}

func (c converter) access(s accessSection) access.Config {
	def := access.DefaultConfig()
	cfg := access.Config{Item: BlockName(s.Material), Name: s.Name, Lore: s.Lore}
	if cfg.Item == "" {
		c.warn("access-item.material", s.Material, def.Item)
		cfg.Item = def.Item
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	return cfg
}
