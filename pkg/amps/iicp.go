package amps

import (
	"github.com/edp1096/tube-spice/pkg/circuit"
	"github.com/edp1096/tube-spice/pkg/device"
)

// IICPlusControls are the front-panel wipes of the IIC+ preamp.
type IICPlusControls struct {
	Treble float64 `yaml:"treble"`
	Mid    float64 `yaml:"mid"`
	Bass   float64 `yaml:"bass"`
	Gain   float64 `yaml:"gain"`
	Master float64 `yaml:"master"`
	Volume float64 `yaml:"volume"`
}

func DefaultIICPlusControls() IICPlusControls {
	return IICPlusControls{
		Treble: 0.8,
		Mid:    0.33,
		Bass:   0.05,
		Gain:   0.5,
		Master: 0.5,
		Volume: 0.75,
	}
}

// IICPlus is the Mesa/Boogie Mark IIC+ lead preamp: six 12AX7 sections from
// input V1 (node N019) to the speaker "Vout" across N014. A handful of the
// schematic's resistors are shorted to a single node; they are kept so the
// device list matches the drawing.
func IICPlus(ctl IICPlusControls, opts ...circuit.Option) (*circuit.Circuit, error) {
	b := newBuilder("iicp", opts...)

	b.add(device.NewInput("V1"), "N019", "0")
	b.R("R27", "N004", "N015", "100k")
	b.R("R22", "N008", "N007", "100k")
	b.pot("RVOL1", "N020", "0", "N008", "1M", ctl.Volume)

	b.C("C15", "N005", "N004", "750p")
	b.C("C14", "N005", "N004", "250p")
	b.C("C16", "N016", "N015", ".1u")
	b.C("C17", "N025", "N015", ".047u")
	b.C("C18", "N020", "N008", "180p")

	// tone stack
	b.pot("RTREBLE", "N005", "N016", "N007", "250k", ctl.Treble)
	b.rheostat("RBASS", "N016", "N025", "250k", ctl.Bass)
	b.rheostat("RMID", "N025", "0", "10k", ctl.Mid)

	b.V("VE", "N003", "0", "405")
	b.R("R5", "N003", "N004", "150k")
	b.triode("XV1A", "N004", "N019", "N033")
	b.R("R13", "N019", "0", "1M")
	b.R("R2", "N033", "0", "1.5k")
	b.C("C6", "N033", "0", ".47u")
	b.C("C7", "N033", "0", "22u")

	b.triode("XV1B", "N009", "N020", "N029")
	b.C("C19A", "N029", "0", "22u")
	b.R("R26", "N029", "0", "1.5k")
	b.R("R27A", "N003", "N009", "100k")
	b.C("C20", "N001", "N009", ".1u")
	b.R("R35", "N001", "0", "100k")
	b.R("R51", "N011", "N026", "680k")
	b.pot("RGAIN", "N026", "0", "N030", "1M", ctl.Gain)
	b.R("R52", "N030", "0", "475k")
	b.C("C35", "N036", "N030", "120p")
	b.R("R53", "N036", "0", "1.5k")
	b.C("C36", "N036", "0", "2.2u")
	b.R("R36", "N002", "N001", "3.3M")
	b.C("C24", "N002", "N001", "20p")
	b.R("R37", "N002", "0", "680k")

	b.triode("XV3B", "N017", "N030", "N036")
	b.V("VC", "N010", "0", "410")
	b.R("R54", "N017", "N010", "82k")
	b.C("C38", "N031", "0", "1000p")
	b.R("R56", "N031", "0", "68k")
	b.R("R55", "N031", "N018", "270k")
	b.C("C37", "N018", "N017", ".022u")

	b.triode("XV4A", "N027", "N031", "N035")
	b.R("R57", "N035", "0", "3.3k")
	b.C("C40", "N035", "0", ".22u")
	b.R("R40", "N027", "N010", "274k")
	b.C("C28", "N028", "N027", ".047u")
	b.C("C27", "N002", "N028", "250p")
	b.R("R39", "N002", "N028", "220k")

	b.triode("XV2B", "N021", "N002", "N037")
	b.R("R44", "N037", "0", "1.5k")
	b.R("R43", "N006", "N021", "100k")
	b.C("C33", "N022", "N021", ".047u")
	b.R("R45", "N023", "N022", "47k")
	b.R("R46", "N023", "0", "47k")
	b.R("R47", "N023", "N034", "150k")
	b.R("R49", "N034", "0", "4.7k")

	b.triode("XV2A", "N012", "N024", "N032")
	b.R("R63", "N006", "N012", "120k")
	b.C("C43", "N013", "N012", ".047u")
	b.rheostat("RMASTER", "N014", "0", "1M", ctl.Master)

	b.V("VC2", "N006", "0", "410")
	b.R("R48", "N024", "0", "47k")
	b.C("C1", "N002", "0", "47p")
	b.C("C2", "N032", "0", ".47u")
	b.C("C3", "N032", "0", "15u")
	b.R("R1", "N032", "0", "1k")
	b.R("R3", "0", "0", "68k")
	b.R("R4", "N024", "N034", "2.2k")
	b.C("C4", "N001", "N011", ".02u")
	b.R("R6", "0", "0", "6.8k")
	b.C("C5", "N002", "0", "500p")
	b.R("R7", "N002", "0", "100k")
	b.R("R9", "N014", "N013", "15k")
	b.R("R10", "N005", "N005", "10M")
	b.R("R11", "0", "0", "15k")

	out := device.NewSpeaker("Vout")
	out.SetImpedance(8)
	b.add(out, "N014", "0")

	return b.build()
}
