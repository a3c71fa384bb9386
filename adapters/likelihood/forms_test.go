package likelihood

import (
	"math"
	"testing"
)

func TestNewForm(t *testing.T) {
	if f, err := NewForm("", 0); err != nil || f.Name() != FormGaussian {
		t.Errorf("empty name should default to gaussian, got %v %v", f, err)
	}
	if _, err := NewForm(FormStudentT, 0); err == nil {
		t.Error("student_t with nu=0 should fail")
	}
	if _, err := NewForm("cauchy", 0); err == nil {
		t.Error("unknown form should fail")
	}
}

func TestStudentT_ConvergesToGaussian(t *testing.T) {
	g, _ := NewForm(FormGaussian, 0)
	st, _ := NewForm(FormStudentT, 1e8)

	for _, q := range []float64{0, 1.5, 10} {
		logDet := -3.2
		n := 5
		gv := g.logLikelihood(q, logDet, n)
		tv := st.logLikelihood(q, logDet, n)
		if math.Abs(gv-tv) > 1e-4 {
			t.Errorf("q=%g: gaussian %.8f vs student-t %.8f", q, gv, tv)
		}
	}
}

func TestStudentT_HeavierTails(t *testing.T) {
	g, _ := NewForm(FormGaussian, 0)
	st, _ := NewForm(FormStudentT, 3)

	// Far out in the tail the t form must assign more probability.
	q := 100.0
	if st.logLikelihood(q, 0, 3) <= g.logLikelihood(q, 0, 3) {
		t.Error("student-t should dominate the gaussian in the far tail")
	}
}
