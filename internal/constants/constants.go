// Package constants holds physical constants in CGS units.
package constants

const C float64 = 2.99792458e10 // [cm s^-1]
const H float64 = 6.6260755e-27 // [erg s]
const K float64 = 1.380658e-16  // [erg K^-1]
const KEv float64 = 8.617385e-5 // [eV K^-1]
const MElectron float64 = 9.10938188e-28
const MProton float64 = 1.67262158e-24
const AMU float64 = 1.66053873e-24
const StefanBoltzmann float64 = 5.6704e-5 // [erg cm^-2 s^-1 K^-4]
const RadConst float64 = 7.5657e-15       // a = 4 sb / c [erg cm^-3 K^-4]
const EvToErgs float64 = 1.60217646e-12
const MeVToErgs float64 = 1.60217646e-6
const MElectronMeV float64 = 0.510998910 // electron rest mass [MeV]
const ThomsonCS float64 = 0.66523e-24    // [cm^2]
const AlphaFS float64 = 7.297352533e-3
const SigmaTot float64 = 0.0265400193567 // pi e^2 / (m_e c), frequency-integrated line cross section [cm^2 Hz]
const DayToSec float64 = 86400.
