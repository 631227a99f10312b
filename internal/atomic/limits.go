package atomic

// Limit truncates the atom to the given maximum ion stage and level
// count (zero or negative limits leave that dimension alone). Lines and
// continuum pointers referencing dropped levels are removed or cleared.
func (a *Atom) Limit(maxIonStage, maxLevels int) {
	keep := make([]bool, len(a.Levels))
	remap := make([]int, len(a.Levels))
	nKept := 0
	for i := range a.Levels {
		ok := true
		if maxIonStage > 0 && a.Levels[i].Ion > maxIonStage {
			ok = false
		}
		if maxLevels > 0 && nKept >= maxLevels {
			ok = false
		}
		keep[i] = ok
		if ok {
			remap[i] = nKept
			nKept++
		} else {
			remap[i] = -1
		}
	}
	if nKept == len(a.Levels) {
		return
	}

	var levels []Level
	for i := range a.Levels {
		if !keep[i] {
			continue
		}
		l := a.Levels[i]
		if l.IC >= 0 {
			if l.IC < len(remap) && keep[l.IC] {
				l.IC = remap[l.IC]
			} else {
				l.IC = -1
			}
		}
		l.GlobalID = remap[i]
		levels = append(levels, l)
	}

	var lines []Line
	for i := range a.Lines {
		ln := a.Lines[i]
		if ln.Ll >= len(keep) || ln.Lu >= len(keep) || !keep[ln.Ll] || !keep[ln.Lu] {
			continue
		}
		ln.Ll = remap[ln.Ll]
		ln.Lu = remap[ln.Lu]
		lines = append(lines, ln)
	}

	maxIon := 0
	for i := range levels {
		if levels[i].Ion > maxIon {
			maxIon = levels[i].Ion
		}
	}
	ions := a.Ions
	if maxIon+1 < len(ions) {
		ions = ions[:maxIon+1]
	}

	a.Levels = levels
	a.Lines = lines
	a.Ions = ions
	a.rates = make([][]float64, len(levels))
	for i := range a.rates {
		a.rates[i] = make([]float64, len(levels))
	}
}
