package cindex

import (
	"sort"

	"github.com/arloliu/graphdb-edge/format"
)

// ByteRange is one span of bytes to fetch, annotated with the section types
// it satisfies.
type ByteRange struct {
	Offset uint64
	Length uint64
	Types  []format.SectionType
}

// FetchPlan selects the directory entries matching wanted and coalesces
// their byte ranges, merging any two ranges separated by a gap no larger
// than gap bytes (§4.5). Ranges are sorted by offset before coalescing, as
// required by the coalesce algorithm.
func FetchPlan(entries []DirEntry, wanted []format.SectionType, gap uint64) []ByteRange {
	want := make(map[format.SectionType]bool, len(wanted))
	for _, t := range wanted {
		want[t] = true
	}

	selected := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		if want[e.Type] {
			selected = append(selected, e)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Offset < selected[j].Offset })

	return coalesce(selected, gap)
}

// coalesce merges adjacent or overlapping directory entries whose gap is at
// most gap bytes into combined byte ranges. entries must already be sorted
// by Offset.
func coalesce(entries []DirEntry, gap uint64) []ByteRange {
	if len(entries) == 0 {
		return nil
	}

	ranges := make([]ByteRange, 0, len(entries))
	cur := ByteRange{
		Offset: entries[0].Offset,
		Length: entries[0].CompressedSize,
		Types:  []format.SectionType{entries[0].Type},
	}

	for _, e := range entries[1:] {
		curEnd := cur.Offset + cur.Length
		if e.Offset <= curEnd+gap {
			newEnd := e.Offset + e.CompressedSize
			if newEnd > curEnd {
				cur.Length = newEnd - cur.Offset
			}
			cur.Types = append(cur.Types, e.Type)

			continue
		}

		ranges = append(ranges, cur)
		cur = ByteRange{
			Offset: e.Offset,
			Length: e.CompressedSize,
			Types:  []format.SectionType{e.Type},
		}
	}
	ranges = append(ranges, cur)

	return ranges
}
