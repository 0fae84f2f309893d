package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/geolabel/conflator/internal/core/model"
)

// ExportAggregated writes one CSV row per annotated pair: per-label vote
// counts, the majority label and the consensus status. Resolved pairs report
// their frozen consensus label, pending ones the current plurality.
func (e *Engine) ExportAggregated(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id_existing", "id_new", "count_match", "count_no_match", "count_unsure", "match", "status"}); err != nil {
		return err
	}

	for _, k := range e.Store.AnnotatedPairKeys() {
		labels := e.Store.LatestPairLabels(k)
		if len(labels) == 0 {
			continue
		}

		counts := make(map[model.Label]int)
		for _, l := range labels {
			counts[l]++
		}

		rec, resolved := e.Store.ResolvedRecord(model.KindPair, k, "")
		status := model.StatusPending
		label := plurality(counts)
		if resolved {
			status = rec.Status
			label = rec.Label
		}

		row := []string{
			k.IDExisting,
			k.IDNew,
			strconv.Itoa(counts[model.LabelMatch]),
			strconv.Itoa(counts[model.LabelNoMatch]),
			strconv.Itoa(counts[model.LabelUnsure]),
			string(label),
			string(status),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportAnnotations writes the raw annotation history, every record
// including superseded ones, latest first per item.
func (e *Engine) ExportAnnotations(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kind", "neighborhood", "id_existing", "id_new", "label", "added", "removed", "annotator", "time"}); err != nil {
		return err
	}

	write := func(ann model.Annotation) error {
		return cw.Write([]string{
			string(ann.Kind),
			ann.Neighborhood,
			ann.Edge.IDExisting,
			ann.Edge.IDNew,
			string(ann.Label),
			joinEdges(ann.Added),
			joinEdges(ann.Removed),
			ann.Annotator,
			ann.CreatedAt.Format("2006-01-02T15:04:05.000"),
		})
	}

	for _, k := range e.Store.AnnotatedPairKeys() {
		for _, ann := range e.Store.PairAnnotations(k) {
			if err := write(ann); err != nil {
				return err
			}
		}
	}
	for _, id := range e.Store.Dataset().NeighborhoodIDs() {
		for _, ann := range e.Store.NeighborhoodAnnotations(id) {
			if err := write(ann); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func plurality(counts map[model.Label]int) model.Label {
	best := model.Label("")
	bestN := -1
	for _, l := range []model.Label{model.LabelMatch, model.LabelNoMatch, model.LabelUnsure} {
		if counts[l] > bestN {
			best = l
			bestN = counts[l]
		}
	}
	return best
}

func joinEdges(keys []model.EdgeKey) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s--%s", k.IDExisting, k.IDNew)
	}
	return strings.Join(parts, ";")
}
