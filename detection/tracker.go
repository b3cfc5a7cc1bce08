package detection

import (
	"image"
	"sort"

	"trailcam/tracking"
)

// Assigner gives detections stable identities across frames by box overlap.
// Association runs in two passes like ByteTrack: confident detections first,
// then the remaining low-confidence ones against the tracks still unmatched.
// Only confident unmatched detections start new tracks; the rest stay untracked.
type Assigner struct {
	profile TrackerProfile
	tracks  []*track
	nextID  tracking.Identity
	frame   int
}

type track struct {
	id       tracking.Identity
	box      image.Rectangle
	classID  int
	lastSeen int
}

// NewAssigner creates an assigner with no live tracks
func NewAssigner(profile TrackerProfile) *Assigner {
	return &Assigner{profile: profile}
}

// Live returns the number of tracks currently kept
func (a *Assigner) Live() int {
	return len(a.tracks)
}

// Assign sets Track and Tracked on dets in place. Every call counts as one frame.
func (a *Assigner) Assign(dets []Detection) {
	a.frame++

	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return dets[order[i]].Confidence > dets[order[j]].Confidence
	})

	matched := make(map[*track]bool)

	// first pass: confident detections
	for _, i := range order {
		d := &dets[i]
		if d.Confidence < a.profile.HighThresh {
			continue
		}
		if t := a.match(d, matched); t != nil {
			a.bind(d, t, matched)
		}
	}

	// second pass: low-confidence detections get a chance to keep a track alive
	for _, i := range order {
		d := &dets[i]
		if d.Tracked || d.Confidence >= a.profile.HighThresh || d.Confidence < a.profile.LowThresh {
			continue
		}
		if t := a.match(d, matched); t != nil {
			a.bind(d, t, matched)
		}
	}

	for _, i := range order {
		d := &dets[i]
		if d.Tracked || d.Confidence < a.profile.NewTrackThresh {
			continue
		}
		a.nextID++
		t := &track{id: a.nextID, classID: d.ClassID}
		a.tracks = append(a.tracks, t)
		a.bind(d, t, matched)
	}

	kept := a.tracks[:0]
	for _, t := range a.tracks {
		if a.frame-t.lastSeen <= a.profile.TrackBuffer {
			kept = append(kept, t)
		}
	}
	a.tracks = kept
}

func (a *Assigner) match(d *Detection, matched map[*track]bool) *track {
	minIoU := a.profile.MinIoU()
	var best *track
	bestIoU := 0.0
	for _, t := range a.tracks {
		if matched[t] || t.classID != d.ClassID {
			continue
		}
		iou := IoU(t.box, d.Box)
		if iou >= minIoU && iou > bestIoU {
			best, bestIoU = t, iou
		}
	}
	return best
}

func (a *Assigner) bind(d *Detection, t *track, matched map[*track]bool) {
	matched[t] = true
	t.box = d.Box
	t.lastSeen = a.frame
	d.Track = t.id
	d.Tracked = true
}
