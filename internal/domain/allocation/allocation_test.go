package allocation_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/greenalloc/internal/domain/allocation"
	"github.com/okian/greenalloc/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/floats"
)

const tolerance = 1e-9

func solarAndWind() []model.Project {
	return []model.Project{
		{Name: "Solar Farm Project", ESGScore: 85, EstimatedReturn: 12.5, CarbonReduction: 5000, RiskLevel: 3, RequiredFunding: 400000},
		{Name: "Wind Energy Initiative", ESGScore: 78, EstimatedReturn: 9.8, CarbonReduction: 4200, RiskLevel: 4, RequiredFunding: 300000},
	}
}

func TestWeightsFor(t *testing.T) {
	Convey("Given every integer risk tolerance in [0, 100]", t, func() {
		Convey("Then risk and safety weights should always sum to one", func() {
			for rt := 0; rt <= 100; rt++ {
				w := allocation.WeightsFor(float64(rt))
				So(w.Risk+w.Safety, ShouldAlmostEqual, 1.0, tolerance)
			}
		})

		Convey("And the extremes should be pure safety and pure risk", func() {
			So(allocation.WeightsFor(0), ShouldResemble, allocation.Weights{Risk: 0, Safety: 1})
			So(allocation.WeightsFor(100), ShouldResemble, allocation.Weights{Risk: 1, Safety: 0})
		})
	})
}

func TestCompute_ConcreteScenario(t *testing.T) {
	Convey("Given the solar and wind fixture at risk tolerance 50", t, func() {
		projects := solarAndWind()

		allocations, err := allocation.Compute(projects, 50)
		So(err, ShouldBeNil)
		So(allocations, ShouldHaveLength, 2)

		Convey("Then the composite scores should match the model", func() {
			w := allocation.WeightsFor(50)
			So(allocation.Score(projects[0], w), ShouldAlmostEqual, 33.5, tolerance)
			So(allocation.Score(projects[1], w), ShouldAlmostEqual, 29.56, tolerance)
		})

		Convey("And displayed scores should be rounded to one decimal", func() {
			So(allocations[0].Score, ShouldEqual, 33.5)
			So(allocations[1].Score, ShouldEqual, 29.6)
		})

		Convey("And values should be funding scaled by score share", func() {
			So(allocations[0].Value, ShouldAlmostEqual, 400000*33.5/63.06, 1e-6)
			So(allocations[1].Value, ShouldAlmostEqual, 300000*29.56/63.06, 1e-6)
			So(allocations[0].Value, ShouldAlmostEqual, 212496.04, 0.01)
			So(allocations[1].Value, ShouldAlmostEqual, 140627.97, 0.01)
		})

		Convey("And names should follow input order", func() {
			So(allocations[0].Name, ShouldEqual, "Solar Farm Project")
			So(allocations[1].Name, ShouldEqual, "Wind Energy Initiative")
		})
	})
}

func TestCompute_Laws(t *testing.T) {
	Convey("Given the allocation engine", t, func() {
		Convey("When the project list is empty", func() {
			for _, rt := range []float64{0, 12.5, 50, 100} {
				allocations, err := allocation.Compute(nil, rt)
				So(err, ShouldBeNil)
				So(allocations, ShouldNotBeNil)
				So(allocations, ShouldBeEmpty)
			}
		})

		Convey("When a single project is allocated", func() {
			hydro := []model.Project{{Name: "Hydroelectric Project", ESGScore: 90, EstimatedReturn: 15, CarbonReduction: 6000, RiskLevel: 2, RequiredFunding: 500000}}

			Convey("Then it should receive exactly its requested funding at any tolerance", func() {
				for rt := 0; rt <= 100; rt += 5 {
					allocations, err := allocation.Compute(hydro, float64(rt))
					So(err, ShouldBeNil)
					So(allocations[0].Value, ShouldAlmostEqual, 500000, 1e-6)
					So(allocations[0].Share, ShouldAlmostEqual, 1.0, tolerance)
				}
			})
		})

		Convey("When many projects are allocated", func() {
			projects := append(solarAndWind(),
				model.Project{Name: "Hydroelectric Project", ESGScore: 90, EstimatedReturn: 15, RiskLevel: 2, RequiredFunding: 500000},
				model.Project{Name: "Geothermal Pilot", ESGScore: 55, EstimatedReturn: 21, RiskLevel: 9, RequiredFunding: 120000},
			)

			Convey("Then shares should sum to one and values should follow them", func() {
				for rt := 0; rt <= 100; rt += 10 {
					res, err := allocation.Run(projects, float64(rt))
					So(err, ShouldBeNil)
					So(res.EqualSplit, ShouldBeFalse)

					shares := make([]float64, len(res.Allocations))
					values := make([]float64, len(res.Allocations))
					expected := make([]float64, len(res.Allocations))
					w := allocation.WeightsFor(float64(rt))
					for i, a := range res.Allocations {
						shares[i] = a.Share
						values[i] = a.Value
						expected[i] = projects[i].RequiredFunding * allocation.Score(projects[i], w) / res.TotalScore
					}
					So(floats.Sum(shares), ShouldAlmostEqual, 1.0, tolerance)
					So(floats.Sum(values), ShouldAlmostEqual, floats.Sum(expected), 1e-6)
				}
			})

			Convey("And output order should match input order", func() {
				allocations, err := allocation.Compute(projects, 73)
				So(err, ShouldBeNil)
				So(allocations, ShouldHaveLength, len(projects))
				for i := range projects {
					So(allocations[i].Name, ShouldEqual, projects[i].Name)
				}
			})

			Convey("And the input slice should be left untouched", func() {
				before := append([]model.Project(nil), projects...)
				_, err := allocation.Compute(projects, 40)
				So(err, ShouldBeNil)
				So(projects, ShouldResemble, before)
			})
		})

		Convey("When a negative score shrinks the total below a project's own score", func() {
			projects := []model.Project{
				{Name: "small", ESGScore: 100, RiskLevel: 1, RequiredFunding: 1000},
				{Name: "troubled", ESGScore: 0, RiskLevel: 24.5, RequiredFunding: 0},
			}

			Convey("Then the value is not capped at the requested funding", func() {
				allocations, err := allocation.Compute(projects, 0)
				So(err, ShouldBeNil)
				// 58 / (58 - 29) doubles the ask.
				So(allocations[0].Share, ShouldAlmostEqual, 2.0, 1e-9)
				So(allocations[0].Value, ShouldAlmostEqual, 2000, 1e-6)
				So(allocations[0].Value, ShouldBeGreaterThan, projects[0].RequiredFunding)
			})
		})
	})
}

func TestCompute_ZeroTotalScore(t *testing.T) {
	Convey("Given projects whose scores cancel out", t, func() {
		projects := []model.Project{
			{Name: "positive", ESGScore: 10, RiskLevel: 10, RequiredFunding: 300},
			{Name: "negative", ESGScore: 0, RiskLevel: 12, RequiredFunding: 500},
		}

		res, err := allocation.Run(projects, 0)

		Convey("Then the engine should fall back to an equal split", func() {
			So(err, ShouldBeNil)
			So(res.TotalScore, ShouldEqual, 0)
			So(res.EqualSplit, ShouldBeTrue)
			So(res.Allocations[0].Share, ShouldEqual, 0.5)
			So(res.Allocations[1].Share, ShouldEqual, 0.5)
			So(res.Allocations[0].Value, ShouldEqual, 150)
			So(res.Allocations[1].Value, ShouldEqual, 250)
		})

		Convey("And no value should be NaN", func() {
			for _, a := range res.Allocations {
				So(math.IsNaN(a.Value), ShouldBeFalse)
				So(math.IsNaN(a.Score), ShouldBeFalse)
			}
		})

		Convey("And the raw scores should still be reported", func() {
			So(res.Allocations[0].Score, ShouldEqual, 4)
			So(res.Allocations[1].Score, ShouldEqual, -4)
		})
	})
}

func TestCompute_InvalidInput(t *testing.T) {
	Convey("Given malformed inputs", t, func() {
		projects := solarAndWind()

		Convey("When risk tolerance is outside [0, 100]", func() {
			for _, rt := range []float64{-0.1, 100.5, 250} {
				_, err := allocation.Compute(projects, rt)
				So(errors.Is(err, allocation.ErrInvalidInput), ShouldBeTrue)
			}
		})

		Convey("When risk tolerance is not finite", func() {
			for _, rt := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
				_, err := allocation.Compute(projects, rt)
				So(errors.Is(err, allocation.ErrInvalidInput), ShouldBeTrue)
			}
		})

		Convey("When a project has a NaN field", func() {
			projects[1].ESGScore = math.NaN()
			_, err := allocation.Compute(projects, 50)

			Convey("Then the error should identify the project", func() {
				So(errors.Is(err, allocation.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalidProject), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "project 1")
			})
		})

		Convey("When a project has no name", func() {
			projects[0].Name = ""
			allocations, err := allocation.Compute(projects, 50)
			So(err, ShouldNotBeNil)
			So(allocations, ShouldBeNil)
		})

		Convey("When funding is negative", func() {
			projects[0].RequiredFunding = -400000

			Convey("Then it passes through arithmetically", func() {
				allocations, err := allocation.Compute(projects, 50)
				So(err, ShouldBeNil)
				So(allocations[0].Value, ShouldBeLessThan, 0)
			})
		})
	})
}

func TestClampRiskTolerance(t *testing.T) {
	Convey("Given caller-side clamping", t, func() {
		So(allocation.ClampRiskTolerance(-5), ShouldEqual, 0)
		So(allocation.ClampRiskTolerance(0), ShouldEqual, 0)
		So(allocation.ClampRiskTolerance(42.5), ShouldEqual, 42.5)
		So(allocation.ClampRiskTolerance(100), ShouldEqual, 100)
		So(allocation.ClampRiskTolerance(180), ShouldEqual, 100)
		So(math.IsNaN(allocation.ClampRiskTolerance(math.NaN())), ShouldBeTrue)
	})
}
