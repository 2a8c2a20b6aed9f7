package serializer

import (
	"math"
	"slices"

	"github.com/measuredat/nexo/format"
	"github.com/measuredat/nexo/store"
)

// PlotDescriptor references a known stream and names the fields a live
// plot displayed against each other. The serializer only records the
// annotations; it never evaluates them.
type PlotDescriptor struct {
	Stream           string
	Axes             []string
	Signal           string
	AuxiliarySignals []string
	Fits             []FitSeries
}

// FitSeries is the history of one curve fit repeated over the run: one
// snapshot per fit iteration, keyed by the timestamp it was produced at.
type FitSeries struct {
	Name       string
	ParamNames []string
	Results    []FitResult
}

// FitResult is one fit snapshot. Covariance is nil when the iteration
// reported none; it is substituted with not-a-number on export so the
// matrix series keeps a uniform shape.
type FitResult struct {
	Time       float64
	Params     map[string]float64
	Covariance [][]float64
	Additional map[string]any
}

// exportPlots writes axis/signal annotations and fit histories for every
// supplied plot descriptor. The whole export is best-effort: a descriptor
// referencing an unknown stream, or a fit snapshot with missing pieces,
// is logged and omitted without failing the run.
func (s *Serializer) exportPlots() {
	axes := make(map[string][]string)
	signals := make(map[string][]string)

	for _, plot := range s.plotData {
		uid, ok := s.streamNames[plot.Stream]
		if !ok {
			s.logger.Warn("plot references unknown stream", "stream", plot.Stream)
			continue
		}
		group := s.streamGroups[uid]
		if group == nil {
			continue
		}

		for _, axis := range plot.Axes {
			axes[uid] = appendUnique(axes[uid], axis)
		}
		if plot.Signal != "" {
			signals[uid] = appendUnique(signals[uid], plot.Signal)
		}
		for _, sig := range plot.AuxiliarySignals {
			signals[uid] = appendUnique(signals[uid], sig)
		}

		for _, fit := range plot.Fits {
			if err := s.exportFit(group, fit); err != nil {
				s.logger.Warn("fit export incomplete", "fit", fit.Name, "error", err)
			}
		}
	}

	for uid, names := range axes {
		s.streamGroups[uid].SetAttr("axes", names)
	}
	for uid, names := range signals {
		group := s.streamGroups[uid]
		group.SetAttr("signal", names[0])
		if len(names) > 1 {
			group.SetAttr("auxiliary_signals", names[1:])
		}
	}
}

// exportFit writes one fit history: timestamp series, per-parameter value
// series and the covariance matrix series, all sorted by snapshot time.
func (s *Serializer) exportFit(group *store.Group, fit FitSeries) error {
	if len(fit.Results) == 0 {
		return nil
	}

	fits, err := group.RequireGroup("fits")
	if err != nil {
		return err
	}
	node, err := fits.RequireGroup(fit.Name)
	if err != nil {
		return err
	}
	node.SetAttr("NX_class", "NXcollection")
	node.SetAttr("param_names", fit.ParamNames)

	results := slices.Clone(fit.Results)
	slices.SortStableFunc(results, func(a, b FitResult) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		default:
			return 0
		}
	})

	times := make([]float64, len(results))
	elapsed := make([]float64, len(results))
	for i, r := range results {
		times[i] = r.Time
		elapsed[i] = r.Time - s.startTime
	}
	if err := s.appendFloat64s(node, "time", times); err != nil {
		return err
	}
	if err := s.appendFloat64s(node, "ElapsedTime", elapsed); err != nil {
		return err
	}

	for _, param := range fit.ParamNames {
		series := make([]float64, len(results))
		for i, r := range results {
			v, ok := r.Params[param]
			if !ok {
				v = math.NaN()
			}
			series[i] = v
		}
		if err := s.appendFloat64s(node, param, series); err != nil {
			return err
		}
	}

	if err := s.exportCovariance(node, results, fit.ParamNames); err != nil {
		return err
	}

	for _, key := range s.additionalKeys(results) {
		column := make([]any, len(results))
		for i, r := range results {
			column[i] = r.Additional[key]
		}
		arr, err := store.CoerceColumn(column)
		if err != nil {
			s.logger.Warn("skipping fit extra", "fit", fit.Name, "key", key, "error", err)
			continue
		}
		if _, err := node.CreateDataset(key, arr, timeChunk); err != nil {
			return err
		}
	}

	return nil
}

// exportCovariance writes one (params x params) matrix per snapshot,
// filling in not-a-number for snapshots that reported no covariance.
func (s *Serializer) exportCovariance(node *store.Group, results []FitResult, paramNames []string) error {
	params := len(paramNames)
	if params == 0 {
		return nil
	}

	flat := make([]float64, 0, len(results)*params*params)
	for _, r := range results {
		for row := 0; row < params; row++ {
			for col := 0; col < params; col++ {
				v := math.NaN()
				if row < len(r.Covariance) && col < len(r.Covariance[row]) {
					v = r.Covariance[row][col]
				}
				flat = append(flat, v)
			}
		}
	}

	arr := store.Array{
		DType:    format.DTypeFloat64,
		Shape:    []int{len(results), params, params},
		Float64s: flat,
	}
	ds, err := node.CreateDataset("covariance", arr, timeChunk)
	if err != nil {
		return err
	}
	ds.SetAttr("parameters", paramNames)

	return nil
}

func (s *Serializer) additionalKeys(results []FitResult) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, r := range results {
		for key := range r.Additional {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	return keys
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}

	return append(list, v)
}
