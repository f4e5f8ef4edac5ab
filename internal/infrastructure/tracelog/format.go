package tracelog

import (
	"fmt"
	"strings"

	"github.com/edirooss/smokers/internal/domain/factory"
)

// Title is the first line of a trace file.
var Title = fmt.Sprintf("%21cSmokers - Description of the internal state", ' ')

// FormatHeader returns the column header for an n-ingredient factory:
// agent, watchers, smokers, inventory, cigarettes.
//
//	 AG  W00 W01 W02  S00 S01 S02  I00 I01 I02  C00 C01 C02
func FormatHeader(n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%3s", "AG")
	b.WriteByte(' ')
	for w := 0; w < n; w++ {
		fmt.Fprintf(&b, " W%02d", w)
	}
	b.WriteByte(' ')
	for s := 0; s < n; s++ {
		fmt.Fprintf(&b, " S%02d", s)
	}
	b.WriteByte(' ')
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, " I%02d", i)
	}
	b.WriteByte(' ')
	for s := 0; s < n; s++ {
		fmt.Fprintf(&b, " C%02d", s)
	}
	return b.String()
}

// FormatRow renders one state as a single trace line aligned with the
// header. Phases are printed as their numeric codes.
func FormatRow(st *factory.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%3d", st.Agent)
	b.WriteByte(' ')
	for _, w := range st.Watchers {
		fmt.Fprintf(&b, "%4d", w)
	}
	b.WriteByte(' ')
	for _, s := range st.Smokers {
		fmt.Fprintf(&b, "%4d", s)
	}
	b.WriteByte(' ')
	for _, v := range st.Inventory {
		fmt.Fprintf(&b, "%4d", v)
	}
	b.WriteByte(' ')
	for _, c := range st.Cigarettes {
		fmt.Fprintf(&b, "%4d", c)
	}
	return b.String()
}
