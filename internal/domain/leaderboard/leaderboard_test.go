package leaderboard_test

import (
	"testing"

	"github.com/okian/evalboard/internal/domain/leaderboard"
	"github.com/okian/evalboard/internal/domain/model"
	"github.com/okian/evalboard/internal/domain/normalize"
	"github.com/okian/evalboard/internal/domain/parse"
	. "github.com/smartystreets/goconvey/convey"
)

func ptr(f float64) *float64 { return &f }

func record(index int, name, test string, score *float64) model.RawRecord {
	return model.RawRecord{
		Index: index,
		Name:  name,
		Test:  test,
		Train: "step,0,1000,2000\nloss,5.1,4.8,4.4",
		Score: score,
	}
}

func names(rows []model.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func entry(summary []leaderboard.SummaryEntry, metric string) (leaderboard.SummaryEntry, bool) {
	for _, e := range summary {
		if e.Metric == metric {
			return e, true
		}
	}
	return leaderboard.SummaryEntry{}, false
}

func TestCanonicalize(t *testing.T) {
	Convey("Given a record with benchmark and extra columns", t, func() {
		parent := "base"
		rec := model.RawRecord{
			Index:  7,
			Parent: &parent,
			Test:   "Model,BoolQ,PIQA,Perplexity\nm,0.5,0.7,12.5",
			Train:  "step,0,2000\nloss,5.0,4.2",
			Score:  ptr(0.81),
		}

		row := leaderboard.Canonicalize(rec, parse.AtStep(2000))

		Convey("Then missing names default from the index", func() {
			So(row.Name, ShouldEqual, "model_7")
			So(row.Parent, ShouldEqual, "base")
		})

		Convey("Then the mean covers benchmark columns only", func() {
			So(*row.Mean, ShouldAlmostEqual, 0.6)
			So(row.Benchmarks, ShouldHaveLength, 2)
			So(row.Extra, ShouldContainKey, "Perplexity")
		})

		Convey("Then score and loss are carried", func() {
			So(*row.Score, ShouldEqual, 0.81)
			So(*row.Loss, ShouldEqual, 4.2)
		})
	})

	Convey("Given a record with only an Average column", t, func() {
		row := leaderboard.Canonicalize(record(1, "m", "Model,Average\nm,0.33", nil), parse.Minimum())

		Convey("Then the mean falls back to it", func() {
			So(row.Mean, ShouldNotBeNil)
			So(*row.Mean, ShouldEqual, 0.33)
			So(row.Score, ShouldBeNil)
		})
	})

	Convey("Given a record without numeric metrics", t, func() {
		row := leaderboard.Canonicalize(record(1, "m", "Model,BoolQ\nm,n/a", nil), parse.Minimum())

		Convey("Then the mean is absent", func() {
			So(row.Mean, ShouldBeNil)
			So(row.Benchmarks[normalize.BoolQ].Kind(), ShouldEqual, model.KindText)
		})
	})
}

func TestBuild(t *testing.T) {
	mode := parse.AtStep(2000)
	pinned := []model.Pinned{
		{
			Name: "gated_delta_net",
			Role: model.RoleSOTA,
			Fixed: &model.FixedMetrics{
				Loss:       ptr(4.377),
				Benchmarks: map[string]float64{"ARC_Challenge": 0.168, "BoolQ": 0.370},
			},
		},
		{Name: "delta_net", Role: model.RoleBaseline},
	}

	Convey("Given records including pinned names", t, func() {
		records := []model.RawRecord{
			record(1, "alpha", "Model,BoolQ\nm,0.30", ptr(0.2)),
			record(2, "Delta_Net", "Model,BoolQ\nm,0.25", ptr(0.1)),
			record(3, "beta", "Model,BoolQ\nm,0.45", ptr(0.9)),
			record(4, "delta_net", "Model,BoolQ\nm,0.99", ptr(0.3)),
			record(5, "GATED_DELTA_NET", "Model,BoolQ\nm,0.99", ptr(0.3)),
		}

		table, summary := leaderboard.Build(records, pinned, mode)

		Convey("Then pinned rows lead in definition order", func() {
			So(names(table.Rows), ShouldResemble, []string{"gated_delta_net", "Delta_Net", "alpha", "beta"})
			So(table.Rows[0].Role, ShouldEqual, model.RoleSOTA)
			So(table.Rows[1].Role, ShouldEqual, model.RoleBaseline)
			So(table.Rows[2].Pinned(), ShouldBeFalse)
		})

		Convey("Then the first record of a pinned name wins and later ones are dropped", func() {
			So(table.Rows[1].Index, ShouldEqual, 2)
			So(table.Dropped, ShouldEqual, 2)
		})

		Convey("Then fixed rows use their own values", func() {
			So(*table.Rows[0].Loss, ShouldEqual, 4.377)
			So(*table.Rows[0].Mean, ShouldAlmostEqual, 0.269)
			So(table.Rows[0].Score, ShouldBeNil)
		})

		Convey("Then the summary picks a single winner per column", func() {
			so, ok := entry(summary, leaderboard.MetricScore)
			So(ok, ShouldBeTrue)
			So(so.Model, ShouldEqual, "beta")
			So(so.Formatted, ShouldEqual, "0.900000")

			b, ok := entry(summary, normalize.BoolQ)
			So(ok, ShouldBeTrue)
			So(b.Model, ShouldEqual, "beta")
			So(b.Row, ShouldEqual, 3)
			So(b.Formatted, ShouldEqual, "0.4500")

			_, ok = entry(summary, normalize.SWDE)
			So(ok, ShouldBeFalse)
		})

		Convey("Then loss is ranked lower-is-better", func() {
			l, ok := entry(summary, leaderboard.MetricLoss)
			So(ok, ShouldBeTrue)
			So(l.Direction, ShouldEqual, leaderboard.LowerIsBetter)
			So(l.Best, ShouldEqual, 4.377)
			So(l.Row, ShouldEqual, 0)
		})
	})

	Convey("Given two records with means 0.30 and 0.45", t, func() {
		records := []model.RawRecord{
			record(1, "low", "Model,BoolQ,PIQA\nm,0.20,0.40", nil),
			record(2, "high", "Model,BoolQ,PIQA\nm,0.40,0.50", nil),
		}
		_, summary := leaderboard.Build(records, nil, mode)

		Convey("Then the mean column goes to the 0.45 row", func() {
			m, ok := entry(summary, leaderboard.MetricMean)
			So(ok, ShouldBeTrue)
			So(m.Model, ShouldEqual, "high")
			So(m.Best, ShouldAlmostEqual, 0.45)
			So(m.Direction, ShouldEqual, leaderboard.HigherIsBetter)
		})
	})

	Convey("Given tied values", t, func() {
		records := []model.RawRecord{
			record(1, "first", "Model,BoolQ\nm,0.5", ptr(0.5)),
			record(2, "second", "Model,BoolQ\nm,0.5", ptr(0.5)),
		}
		_, summary := leaderboard.Build(records, nil, mode)

		Convey("Then the earliest row wins every column", func() {
			for _, e := range summary {
				So(e.Model, ShouldEqual, "first")
				So(e.Row, ShouldEqual, 0)
			}
		})
	})

	Convey("Given the same input twice", t, func() {
		records := []model.RawRecord{
			record(1, "a", "Model,BoolQ,PIQA\nm,0.1,0.9", ptr(0.4)),
			record(2, "delta_net", "Model,BoolQ\nm,0.3", ptr(0.4)),
			record(3, "c", "Model,PIQA\nm,0.9", ptr(0.2)),
		}
		t1, s1 := leaderboard.Build(records, pinned, mode)
		t2, s2 := leaderboard.Build(records, pinned, mode)

		Convey("Then order and winners are identical", func() {
			So(names(t1.Rows), ShouldResemble, names(t2.Rows))
			So(s1, ShouldResemble, s2)
		})
	})

	Convey("Given duplicate pinned definitions", t, func() {
		defs := []model.Pinned{
			{Name: "ref", Role: model.RoleSOTA},
			{Name: "REF", Role: model.RoleBaseline},
		}
		table, _ := leaderboard.Build([]model.RawRecord{record(1, "ref", "", nil)}, defs, mode)

		Convey("Then only the first definition applies", func() {
			So(table.Rows, ShouldHaveLength, 1)
			So(table.Rows[0].Role, ShouldEqual, model.RoleSOTA)
		})
	})

	Convey("Given a baseline defined ahead of the SOTA row", t, func() {
		defs := []model.Pinned{
			{Name: "delta_net", Role: model.RoleBaseline},
			{Name: "mamba", Role: model.RoleBaseline},
			pinned[0],
		}
		records := []model.RawRecord{
			record(1, "mamba", "Model,BoolQ\nm,0.20", nil),
			record(2, "alpha", "Model,BoolQ\nm,0.30", nil),
			record(3, "delta_net", "Model,BoolQ\nm,0.25", nil),
		}
		table, summary := leaderboard.Build(records, defs, mode)

		Convey("Then the SOTA row still leads and baselines keep definition order", func() {
			So(names(table.Rows), ShouldResemble, []string{"gated_delta_net", "delta_net", "mamba", "alpha"})
			So(table.Rows[0].Role, ShouldEqual, model.RoleSOTA)
		})

		Convey("Then summary rows point into the reordered table", func() {
			for _, e := range summary {
				So(table.Rows[e.Row].Name, ShouldEqual, e.Model)
			}
		})
	})

	Convey("Given no records and no pinned definitions", t, func() {
		table, summary := leaderboard.Build(nil, nil, mode)

		Convey("Then the table and summary are empty", func() {
			So(table.Rows, ShouldBeEmpty)
			So(summary, ShouldBeEmpty)
		})
	})
}

func TestFormat(t *testing.T) {
	Convey("Given metric values", t, func() {
		So(leaderboard.Format(leaderboard.MetricScore, 0.1234567), ShouldEqual, "0.123457")
		So(leaderboard.Format(leaderboard.MetricLoss, 4.37749), ShouldEqual, "4.3775")
		So(leaderboard.Format(normalize.PIQA, 0.5), ShouldEqual, "0.5000")
		So(leaderboard.Columns()[:3], ShouldResemble, []string{"Score", "Loss", "Mean"})
		So(leaderboard.Columns(), ShouldHaveLength, 15)
	})
}
