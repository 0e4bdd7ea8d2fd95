package engine

import (
	"time"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/dixieflatline76/AetherDesk/pkg/schedule"
	"github.com/dixieflatline76/AetherDesk/pkg/wallpaper"
	"github.com/dixieflatline76/AetherDesk/util/log"
)

// SpecFromRecord converts a persisted wallpaper request. Loop defaults to true.
func SpecFromRecord(r config.WallpaperRecord) (wallpaper.Spec, error) {
	t, err := wallpaper.ParseType(r.Type)
	if err != nil {
		return wallpaper.Spec{}, err
	}
	spec := wallpaper.Spec{
		Type: t,
		Path: r.Path,
		Options: wallpaper.Options{
			Loop:   r.Loop == nil || *r.Loop,
			Volume: r.Volume,
			Fit:    r.Fit,
		},
	}
	if len(r.Uniforms) > 0 {
		spec.Options.Uniforms = make(map[string]string, len(r.Uniforms))
		for k, v := range r.Uniforms {
			spec.Options.Uniforms[k] = v
		}
	}
	return spec, spec.Validate()
}

// RecordFromSpec is the inverse of SpecFromRecord.
func RecordFromSpec(spec wallpaper.Spec) config.WallpaperRecord {
	r := config.WallpaperRecord{
		Type:   spec.Type.String(),
		Path:   spec.Path,
		Volume: spec.Options.Volume,
		Fit:    spec.Options.Fit,
	}
	if !spec.Options.Loop {
		loop := false
		r.Loop = &loop
	}
	if len(spec.Options.Uniforms) > 0 {
		r.Uniforms = spec.Clone().Options.Uniforms
	}
	return r
}

// TriggerFromRecord converts a persisted trigger.
func TriggerFromRecord(r config.TriggerRecord) (schedule.Trigger, error) {
	kind, err := schedule.ParseTriggerKind(r.Kind)
	if err != nil {
		return schedule.Trigger{}, err
	}
	t := schedule.Trigger{Kind: kind}
	switch kind {
	case schedule.TriggerTime:
		t.Hour, t.Minute, err = schedule.ParseClock(r.At)
		if err != nil {
			return schedule.Trigger{}, err
		}
	case schedule.TriggerInterval:
		t.Every = r.Every
	case schedule.TriggerSystemEvent:
		t.Event = r.Event
	case schedule.TriggerCustom:
		t.Predicate = r.Predicate
	}
	return t, t.Validate()
}

// RecordFromTrigger is the inverse of TriggerFromRecord.
func RecordFromTrigger(t schedule.Trigger) config.TriggerRecord {
	r := config.TriggerRecord{Kind: t.Kind.String()}
	switch t.Kind {
	case schedule.TriggerTime:
		r.At = t.Clock()
	case schedule.TriggerInterval:
		r.Every = t.Every
	case schedule.TriggerSystemEvent:
		r.Event = t.Event
	case schedule.TriggerCustom:
		r.Predicate = t.Predicate
	}
	return r
}

// ItemFromRecord converts a persisted schedule item.
func ItemFromRecord(r config.ScheduleRecord) (schedule.Item, error) {
	trigger, err := TriggerFromRecord(r.Trigger)
	if err != nil {
		return schedule.Item{}, err
	}
	target, err := SpecFromRecord(r.Target)
	if err != nil {
		return schedule.Item{}, err
	}
	it := schedule.Item{ID: r.ID, Trigger: trigger, Target: target, Enabled: r.Enabled}
	if r.LastFired != nil {
		it.LastFired = *r.LastFired
	}
	return it, nil
}

// RecordFromItem is the inverse of ItemFromRecord.
func RecordFromItem(it schedule.Item) config.ScheduleRecord {
	r := config.ScheduleRecord{
		ID:      it.ID,
		Trigger: RecordFromTrigger(it.Trigger),
		Target:  RecordFromSpec(it.Target),
		Enabled: it.Enabled,
	}
	if !it.LastFired.IsZero() {
		fired := it.LastFired
		r.LastFired = &fired
	}
	return r
}

// ItemsFromRecords converts a persisted schedule. Records that do not convert
// are logged and skipped so one bad entry does not disable the rest.
func ItemsFromRecords(records []config.ScheduleRecord) []schedule.Item {
	items := make([]schedule.Item, 0, len(records))
	for _, r := range records {
		it, err := ItemFromRecord(r)
		if err != nil {
			log.Printf("Skipping schedule item %s: %v", r.ID, err)
			continue
		}
		items = append(items, it)
	}
	return items
}

// ScheduleSaver returns a scheduler OnChange callback that writes the schedule
// back to cfg.
func ScheduleSaver(cfg *config.Config) func([]schedule.Item) {
	return func(items []schedule.Item) {
		records := make([]config.ScheduleRecord, len(items))
		for i, it := range items {
			records[i] = RecordFromItem(it)
		}
		start := time.Now()
		if err := cfg.SetScheduleRecords(records); err != nil {
			log.Printf("Failed to save schedule: %v", err)
			return
		}
		log.Debugf("Schedule saved to %s in %s", cfg.Path(), time.Since(start))
	}
}
