package utils

import (
	"cmp"
	"math"

	"golang.org/x/exp/constraints"

	"github.com/Knights-Templars/pubsed/internal/constants"
)

func Argmax[T cmp.Ordered](arr []T) (argmax int) {
	for i := range arr {
		if cmp.Compare(arr[i], arr[argmax]) == 1 {
			argmax = i
		}
	}
	return
}

type Number interface {
	constraints.Float | constraints.Integer
}

func SumSlice[T Number](arr []T) (r T) {
	for i := range arr {
		r += arr[i]
	}
	return
}

func Average[T Number](s []T) (mean float64) {
	for i := range s {
		mean += float64(s[i])
	}
	mean /= float64(len(s))
	return
}

func MeanAndVariance[T Number](s []T, unbiased bool) (mean, variance float64) {
	mean = Average(s)
	for i := range s {
		variance += (float64(s[i]) - mean) * (float64(s[i]) - mean)
	}
	if unbiased {
		variance /= float64(len(s) - 1)
	} else {
		variance /= float64(len(s))
	}
	return
}

func IntAbs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// BlackbodyNu is the Planck function B_nu(T) in frequency units
// [erg s^-1 cm^-2 Hz^-1 ster^-1].
func BlackbodyNu(T, nu float64) float64 {
	zeta := constants.H * nu / constants.K / T
	if zeta > 700 {
		return 0
	}
	return 2.0 * nu * nu * nu * constants.H / constants.C / constants.C / (math.Exp(zeta) - 1)
}

// DBlackbodyDT is the temperature derivative of the Planck function,
// used as the Rosseland weighting function.
func DBlackbodyDT(T, nu float64) float64 {
	zeta := constants.H * nu / constants.K / T
	if zeta > 700 {
		return 0
	}
	ez := math.Exp(zeta)
	b := 2.0 * nu * nu * nu * constants.H / constants.C / constants.C / (ez - 1)
	return b * zeta / T * ez / (ez - 1)
}
