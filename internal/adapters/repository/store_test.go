package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/evalboard/internal/adapters/repository"
	"github.com/okian/evalboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func sample() model.Snapshot {
	parent := "base"
	score := 0.75
	at := model.NewTimestamp(time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC))
	return model.Snapshot{
		HighWaterMark: 3,
		Records: []model.RawRecord{
			{Index: 1, Name: "alpha", Parent: &parent, Test: "Model,BoolQ\nm,0.5", Train: "step,2000\nloss,4.4", Score: &score, FetchedAt: at},
			{Index: 3, Name: "model_3", Test: "", Train: "", FetchedAt: at},
		},
		Skipped:    []int{2},
		LastUpdate: at,
	}
}

func openAll(dir string) map[string]repository.Store {
	out := map[string]repository.Store{}
	for _, b := range repository.Backends() {
		s, err := repository.Open(b, filepath.Join(dir, "snap."+b))
		So(err, ShouldBeNil)
		out[b] = s
	}
	return out
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	Convey("Given every store backend", t, func() {
		stores := openAll(t.TempDir())
		defer func() {
			for _, s := range stores {
				So(s.Close(), ShouldBeNil)
			}
		}()

		for _, name := range repository.Backends() {
			s := stores[name]
			Convey("When the "+name+" store is fresh", func() {
				snap, err := s.Load(ctx)

				Convey("Then it loads the empty snapshot", func() {
					So(err, ShouldBeNil)
					So(snap.Empty(), ShouldBeTrue)
				})
			})

			Convey("When the "+name+" store saves and loads", func() {
				want := sample()
				So(s.Save(ctx, want), ShouldBeNil)
				got, err := s.Load(ctx)

				Convey("Then the snapshot round-trips", func() {
					So(err, ShouldBeNil)
					So(got.HighWaterMark, ShouldEqual, 3)
					So(got.Skipped, ShouldResemble, []int{2})
					So(got.Records, ShouldHaveLength, 2)
					So(got.Records[0].Name, ShouldEqual, "alpha")
					So(got.Records[0].ParentName(), ShouldEqual, "base")
					So(*got.Records[0].Score, ShouldEqual, 0.75)
					So(got.Records[0].Test, ShouldEqual, want.Records[0].Test)
					So(got.Records[1].Index, ShouldEqual, 3)
					So(got.Records[1].Parent, ShouldBeNil)
					So(got.Records[1].Score, ShouldBeNil)
					So(got.LastUpdate.Equal(want.LastUpdate.Time), ShouldBeTrue)
				})

				Convey("Then an invalid snapshot is refused and the old one survives", func() {
					bad := sample()
					bad.HighWaterMark = 10
					So(s.Save(ctx, bad), ShouldNotBeNil)
					again, err := s.Load(ctx)
					So(err, ShouldBeNil)
					So(again.HighWaterMark, ShouldEqual, 3)
				})

				Convey("Then reset empties the store", func() {
					So(s.Reset(ctx), ShouldBeNil)
					empty, err := s.Load(ctx)
					So(err, ShouldBeNil)
					So(empty.Empty(), ShouldBeTrue)
					So(s.Reset(ctx), ShouldBeNil)
				})
			})
		}
	})

	Convey("Given an unknown backend", t, func() {
		_, err := repository.Open("redis", "x")
		So(errors.Is(err, repository.ErrUnknownBackend), ShouldBeTrue)
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a file store", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "cache_db1.json")
		s := repository.NewFileStore(path)
		So(s.Path(), ShouldEqual, path)

		Convey("When saving", func() {
			So(s.Save(ctx, sample()), ShouldBeNil)

			Convey("Then no temporary files are left behind", func() {
				entries, err := os.ReadDir(filepath.Dir(path))
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].Name(), ShouldEqual, "cache_db1.json")
			})
		})

		Convey("When the file holds garbage", func() {
			So(os.MkdirAll(filepath.Dir(path), 0o755), ShouldBeNil)
			So(os.WriteFile(path, []byte(`{"high_water_mark":`), 0o644), ShouldBeNil)
			_, err := s.Load(ctx)

			Convey("Then loading reports corruption", func() {
				So(errors.Is(err, repository.ErrSnapshotCorrupt), ShouldBeTrue)
			})
		})

		Convey("When the file was written by the older tooling", func() {
			legacy := `{"total_records_at_last_run":2,"results":[{"index":2,"name":"b","test":"","train":"","timestamp":"2025-07-01T10:00:00.5"}],"last_update":"2025-07-01T10:00:01"}`
			So(os.MkdirAll(filepath.Dir(path), 0o755), ShouldBeNil)
			So(os.WriteFile(path, []byte(legacy), 0o644), ShouldBeNil)
			snap, err := s.Load(ctx)

			Convey("Then it loads and saves in the current shape", func() {
				So(err, ShouldBeNil)
				So(snap.HighWaterMark, ShouldEqual, 2)
				So(snap.Skipped, ShouldResemble, []int{1})
				So(s.Save(ctx, snap), ShouldBeNil)
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"high_water_mark": 2`)
				So(string(data), ShouldNotContainSubstring, "total_records_at_last_run")
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(s.Save(cctx, sample()), ShouldNotBeNil)
			_, err := os.Stat(path)
			So(os.IsNotExist(err), ShouldBeTrue)
		})
	})
}
