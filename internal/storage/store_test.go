package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/sim"
)

func runPreset(name string) (*config.Scenario, *sim.Result) {
	sc := config.GetPreset(name)
	Expect(sc).NotTo(BeNil())

	loop, err := sc.Build()
	Expect(err).NotTo(HaveOccurred())

	res, err := loop.Run(nil)
	Expect(err).NotTo(HaveOccurred())
	return sc, res
}

var _ = Describe("Store", func() {
	var st *Store

	BeforeEach(func() {
		st = New(filepath.Join(GinkgoT().TempDir(), "runs"))
		Expect(st.Init()).To(Succeed())
	})

	It("lists nothing in an empty directory", func() {
		runs, err := st.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(BeEmpty())
	})

	It("lists nothing when the directory does not exist", func() {
		runs, err := New(filepath.Join(GinkgoT().TempDir(), "missing")).List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(BeEmpty())
	})

	It("saves and reloads a run", func() {
		sc, res := runPreset("baseline")

		id, err := st.Save(sc, res)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).NotTo(BeEmpty())

		Expect(filepath.Join(st.Dir(), id, "metadata.json")).To(BeARegularFile())
		Expect(st.SamplesPath(id)).To(BeARegularFile())

		meta, err := st.Load(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.ID).To(Equal(id))
		Expect(meta.Name).To(Equal("baseline"))
		Expect(meta.Samples).To(Equal(len(res.Samples)))
		Expect(meta.Scenario.Controller.IntegralLimits).NotTo(BeNil())
		Expect(*meta.Scenario.Controller.IntegralLimits).To(Equal(*sc.Controller.IntegralLimits))

		samples, err := st.LoadSamples(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(HaveLen(len(res.Samples)))
		for i := range samples {
			Expect(samples[i].Time).To(BeNumerically("~", res.Samples[i].Time, 1e-6))
			Expect(samples[i].Measurement).To(BeNumerically("~", res.Samples[i].Measurement, 1e-6))
			Expect(samples[i].Control).To(BeNumerically("~", res.Samples[i].Control, 1e-6))
		}
	})

	It("records disturbance recovery for disturbed runs only", func() {
		sc, res := runPreset("baseline")
		id, err := st.Save(sc, res)
		Expect(err).NotTo(HaveOccurred())

		meta, err := st.Load(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.Recovery).NotTo(BeNil())
		Expect(meta.Recovery.Drop).To(BeNumerically("~", 0.1862, 1e-3))

		sc, res = runPreset("single")
		id, err = st.Save(sc, res)
		Expect(err).NotTo(HaveOccurred())

		meta, err = st.Load(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.Recovery).To(BeNil())
	})

	It("lists saved runs and skips foreign directories", func() {
		for _, name := range []string{"baseline", "no_antiwindup"} {
			sc, res := runPreset(name)
			_, err := st.Save(sc, res)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(os.MkdirAll(filepath.Join(st.Dir(), "junk"), 0755)).To(Succeed())

		runs, err := st.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(2))

		names := []string{runs[0].Name, runs[1].Name}
		Expect(names).To(ConsistOf("baseline", "no_antiwindup"))
	})

	It("reports unknown runs", func() {
		_, err := st.Load("nope")
		Expect(err).To(MatchError(ErrRunNotFound))

		_, err = st.LoadSamples("nope")
		Expect(err).To(MatchError(ErrRunNotFound))
	})

	It("exports a run as JSON", func() {
		sc, res := runPreset("single")
		id, err := st.Save(sc, res)
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(st.ExportJSON(&buf, id)).To(Succeed())

		var data ExportData
		Expect(json.Unmarshal(buf.Bytes(), &data)).To(Succeed())
		Expect(data.ID).To(Equal(id))
		Expect(data.Times).To(HaveLen(len(res.Samples)))
		Expect(data.Controls).To(HaveLen(len(res.Samples)))
		Expect(data.Setpoints[len(data.Setpoints)-1]).To(Equal(1.0))
	})
})
