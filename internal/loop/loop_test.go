package loop_test

import (
	"errors"
	"math"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/jointctl/internal/config"
	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/loop"
	"github.com/san-kum/jointctl/internal/physics"
	"github.com/san-kum/jointctl/internal/sim"
)

type fakeSensor struct {
	mu  sync.Mutex
	raw float64
	err error
}

func (f *fakeSensor) Position() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw, f.err
}

func (f *fakeSensor) set(raw float64, err error) {
	f.mu.Lock()
	f.raw, f.err = raw, err
	f.mu.Unlock()
}

type sampleSink struct {
	samples []dynamo.Sample
	err     error
}

func (s *sampleSink) Report(sample dynamo.Sample) error {
	s.samples = append(s.samples, sample)
	return s.err
}

func newJoint(cfg *config.Config, initial dynamo.JointState) *sim.Joint {
	params, err := cfg.ArmParameters()
	Expect(err).NotTo(HaveOccurred())
	arm, err := physics.NewArm(params)
	Expect(err).NotTo(HaveOccurred())
	return sim.NewJoint(arm, initial)
}

func run(l *loop.Loop, j *sim.Joint, ticks int) {
	for i := 0; i < ticks; i++ {
		Expect(l.Tick()).To(Succeed())
		j.Advance(l.Dt())
	}
}

var _ = Describe("Loop", func() {
	var (
		cfg   *config.Config
		joint *sim.Joint
		l     *loop.Loop
	)

	BeforeEach(func() {
		cfg = config.GetPreset("bench")
		joint = newJoint(cfg, dynamo.JointState{})
		var err error
		l, err = loop.New(cfg, joint, joint)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("construction", func() {
		It("holds the joint where it was found", func() {
			Expect(l.Goal()).To(Equal(dynamo.JointState{}))
			Expect(l.Reference()).To(Equal(dynamo.JointState{}))
			Expect(l.Ticks()).To(BeZero())
		})

		It("seeds velocity from a velocity sensor", func() {
			moving := newJoint(cfg, dynamo.JointState{Position: 0.2, Velocity: 0.5})
			ml, err := loop.New(cfg, moving, moving)
			Expect(err).NotTo(HaveOccurred())
			Expect(ml.Estimate().Velocity).To(Equal(0.5))
			Expect(ml.Reference()).To(Equal(dynamo.JointState{Position: 0.2, Velocity: 0.5}))
			Expect(ml.Goal()).To(Equal(dynamo.JointState{Position: 0.2}))
		})

		It("seeds zero velocity from a position-only sensor", func() {
			s := &fakeSensor{raw: 3}
			pl, err := loop.New(cfg, s, &sim.Output{})
			Expect(err).NotTo(HaveOccurred())
			Expect(pl.Estimate()).To(Equal(dynamo.JointState{Position: 3}))
		})

		It("fails fast on a bad configuration", func() {
			cfg.Plant.GearRatio = -1
			_, err := loop.New(cfg, joint, joint)
			Expect(err).To(MatchError(dynamo.ErrParameterBounds))
			var ce *dynamo.ConfigError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.Field).To(Equal("plant.gear_ratio"))
		})

		It("exposes the plant and gains it was built with", func() {
			Expect(l.Plant().Dt).To(Equal(cfg.Dt))
			k, kalman := l.Gains()
			r, c := k.Dims()
			Expect([]int{r, c}).To(Equal([]int{1, 2}))
			Expect(k.At(0, 0)).To(BeNumerically(">", 0))
			r, c = kalman.Dims()
			Expect([]int{r, c}).To(Equal([]int{2, 1}))
		})

		It("fails when the first reading is a fault", func() {
			_, err := loop.New(cfg, &fakeSensor{raw: math.NaN()}, &sim.Output{})
			Expect(err).To(MatchError(dynamo.ErrSensorFault))
		})
	})

	Describe("a step to 1.0 rad from rest", func() {
		It("settles within 200 ticks", func() {
			l.SetGoal(1.0)
			run(l, joint, 200)

			final := joint.State()
			Expect(final.Position).To(BeNumerically("~", 1.0, 0.01))
			Expect(final.Velocity).To(BeNumerically("~", 0, 0.01))
			Expect(l.AtGoal(0.01)).To(BeTrue())
			Expect(l.Ticks()).To(BeEquivalentTo(200))
		})

		It("keeps the reference within the motion constraints", func() {
			l.SetGoal(1.0)
			prev := l.Reference()
			for i := 0; i < 150; i++ {
				Expect(l.Tick()).To(Succeed())
				joint.Advance(l.Dt())
				ref := l.Reference()
				Expect(math.Abs(ref.Velocity)).To(BeNumerically("<=", cfg.Constraints.MaxVelocity+1e-9))
				accel := (ref.Velocity - prev.Velocity) / l.Dt()
				Expect(math.Abs(accel)).To(BeNumerically("<=", cfg.Constraints.MaxAcceleration+1e-6))
				Expect(ref.Position).To(BeNumerically("<=", 1.0+1e-9))
				prev = ref
			}
		})

		It("never commands more than the voltage limit", func() {
			var out sim.Output
			act := sim.MirroredActuator{Leader: joint, Follower: &out}
			ml, err := loop.New(cfg, joint, act)
			Expect(err).NotTo(HaveOccurred())
			ml.SetGoal(50)
			for i := 0; i < 100; i++ {
				Expect(ml.Tick()).To(Succeed())
				joint.Advance(ml.Dt())
				Expect(math.Abs(ml.Voltage())).To(BeNumerically("<=", cfg.MaxVoltage))
				Expect(out.Voltage()).To(Equal(-ml.Voltage()))
			}
		})

		It("converges with plant-inversion feedforward", func() {
			ff := config.GetPreset("feedforward")
			fj := newJoint(ff, dynamo.JointState{})
			fl, err := loop.New(ff, fj, fj)
			Expect(err).NotTo(HaveOccurred())
			fl.SetGoal(1.0)
			run(fl, fj, 200)
			Expect(fj.State().Position).To(BeNumerically("~", 1.0, 0.01))
			Expect(fj.State().Velocity).To(BeNumerically("~", 0, 0.01))
		})
	})

	It("outputs no voltage on the first tick when already at the goal", func() {
		Expect(l.Tick()).To(Succeed())
		Expect(l.Voltage()).To(BeNumerically("~", 0, 1e-9))
		Expect(joint.Voltage()).To(BeNumerically("~", 0, 1e-9))
	})

	Describe("sensor faults", func() {
		It("skips the tick and re-emits the held voltage", func() {
			l.SetGoal(1.0)
			run(l, joint, 10)
			held := l.Voltage()
			Expect(held).NotTo(BeZero())
			ref := l.Reference()

			joint.SetVoltage(0)
			joint.FailNext(1)
			err := l.Tick()
			Expect(err).To(MatchError(dynamo.ErrSensorFault))
			var te *dynamo.TickError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Tick).To(BeEquivalentTo(11))

			Expect(joint.Voltage()).To(Equal(held))
			Expect(l.Reference()).To(Equal(ref))
			Expect(l.Faults()).To(BeEquivalentTo(1))

			joint.Advance(l.Dt())
			run(l, joint, 190)
			Expect(joint.State().Position).To(BeNumerically("~", 1.0, 0.01))
		})

		DescribeTable("rejects implausible readings",
			func(raw float64, limits *config.Limits) {
				cfg.SensorLimits = limits
				s := &fakeSensor{raw: 0}
				out := &sim.Output{}
				fl, err := loop.New(cfg, s, out)
				Expect(err).NotTo(HaveOccurred())

				s.set(raw, nil)
				Expect(fl.Tick()).To(MatchError(dynamo.ErrSensorFault))
				Expect(fl.Faults()).To(BeEquivalentTo(1))
				Expect(out.Commands()).To(Equal(1))
			},
			Entry("NaN", math.NaN(), nil),
			Entry("+Inf", math.Inf(1), nil),
			Entry("-Inf", math.Inf(-1), nil),
			Entry("outside sensor limits", 5.0, &config.Limits{Min: -1, Max: 1}),
		)

		It("treats sensor errors as faults", func() {
			s := &fakeSensor{}
			fl, err := loop.New(cfg, s, &sim.Output{})
			Expect(err).NotTo(HaveOccurred())
			s.set(0, errors.New("can bus timeout"))
			Expect(fl.Tick()).To(MatchError(dynamo.ErrSensorFault))
		})
	})

	Describe("goals", func() {
		It("maps angles through the kinematics", func() {
			elbow := config.GetPreset("elbow")
			s := &fakeSensor{raw: 870}
			el, err := loop.New(elbow, s, &sim.Output{})
			Expect(err).NotTo(HaveOccurred())
			Expect(el.KinematicAngle()).To(BeNumerically("~", 1.0, 1e-12))

			el.SetGoal(0.5)
			Expect(el.Goal().Position).To(BeNumerically("~", 750, 1e-9))
			Expect(el.GoalAngle()).To(BeNumerically("~", 0.5, 1e-12))
		})

		It("reports the raw reading, not the estimate", func() {
			s := &fakeSensor{raw: 0}
			fl, err := loop.New(cfg, s, &sim.Output{})
			Expect(err).NotTo(HaveOccurred())
			s.set(0.3, nil)
			Expect(fl.Tick()).To(Succeed())
			Expect(fl.KinematicAngle()).To(Equal(0.3))
			Expect(fl.Estimate().Position).NotTo(Equal(0.3))
		})

		It("clamps goals to the configured limits", func() {
			cfg.GoalLimits = &config.Limits{Min: -0.5, Max: 0.5}
			gl, err := loop.New(cfg, joint, joint)
			Expect(err).NotTo(HaveOccurred())
			gl.SetGoal(2)
			Expect(gl.Goal().Position).To(Equal(0.5))
			gl.SetGoalRaw(-3)
			Expect(gl.Goal().Position).To(Equal(-0.5))
		})

		It("passes goals through without limits", func() {
			l.SetGoal(25)
			Expect(l.Goal().Position).To(Equal(25.0))
		})

		It("ignores non-finite goals", func() {
			l.SetGoal(0.4)
			l.SetGoal(math.NaN())
			l.SetGoalRaw(math.Inf(1))
			Expect(l.Goal().Position).To(Equal(0.4))
		})

		It("holds at the current profiled position", func() {
			l.SetGoal(1.0)
			run(l, joint, 30)
			Expect(l.Reference().Velocity).To(BeNumerically(">", 0))
			l.Hold()
			Expect(l.Goal()).To(Equal(dynamo.JointState{Position: l.Reference().Position}))
			stop := l.Goal().Position

			prev := l.Reference()
			for i := 0; i < 150; i++ {
				Expect(l.Tick()).To(Succeed())
				joint.Advance(l.Dt())
				ref := l.Reference()
				accel := math.Abs(ref.Velocity-prev.Velocity) / l.Dt()
				Expect(accel).To(BeNumerically("<=", cfg.Constraints.MaxAcceleration+1e-6), "tick %d", i)
				Expect(math.Abs(ref.Position-prev.Position)).To(BeNumerically("<=", cfg.Constraints.MaxVelocity*l.Dt()+1e-9))
				prev = ref
			}
			Expect(prev).To(Equal(l.Goal()))
			Expect(joint.State().Position).To(BeNumerically("~", stop, 0.01))
			Expect(stop).To(BeNumerically("<", 1.0))
		})

		It("accepts goals from other goroutines while ticking", func() {
			goals := []float64{0.1, 0.2, 0.3, 0.4}
			l.SetGoal(goals[0])
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 400; i++ {
					l.SetGoal(goals[i%len(goals)])
				}
			}()
			for i := 0; i < 100; i++ {
				Expect(l.Tick()).To(Succeed())
				joint.Advance(l.Dt())
				Expect(goals).To(ContainElement(l.Goal().Position))
			}
			wg.Wait()
		})
	})

	Describe("telemetry", func() {
		It("reports every healthy tick and ignores sink errors", func() {
			elbow := config.GetPreset("elbow")
			ej := newJoint(elbow, dynamo.JointState{Position: elbow.Kinematics.ToRaw(0)})
			sink := &sampleSink{err: errors.New("disk full")}
			tl, err := loop.New(elbow, ej, ej, loop.WithTelemetry(sink))
			Expect(err).NotTo(HaveOccurred())
			tl.SetGoal(0.5)
			Expect(tl.Goal().Position).To(BeNumerically("~", 750, 1e-9))
			run(tl, ej, 5)
			ej.FailNext(1)
			Expect(tl.Tick()).To(HaveOccurred())

			Expect(sink.samples).To(HaveLen(5))
			last := sink.samples[4]
			Expect(last.Tick).To(BeEquivalentTo(5))
			Expect(last.Time).To(BeNumerically("~", 0.1, 1e-12))
			Expect(last.Goal).To(BeNumerically("~", 0.5, 1e-12))
			Expect(last.Angle).To(BeNumerically("~", elbow.Kinematics.ToAngle(last.Measured), 1e-12))
			Expect(last.Angle).To(BeNumerically("<", 0.1))
			Expect(last.Voltage).To(Equal(tl.Voltage()))
		})
	})
})
