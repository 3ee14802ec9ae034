package storage

import (
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidsim/internal/dynamo"
)

var _ = Describe("Archive", func() {
	var archive *Archive

	BeforeEach(func() {
		var err error
		archive, err = OpenArchive(filepath.Join(GinkgoT().TempDir(), "runs.sqlite3"))
		Expect(err).NotTo(HaveOccurred())
		archive.batchSize = 64
		Expect(archive.Path()).To(HaveSuffix("runs.sqlite3"))
	})

	AfterEach(func() {
		Expect(archive.Close()).To(Succeed())
	})

	It("records samples streamed from a loop", func() {
		sc, _ := runPreset("baseline")
		loop, err := sc.Build()
		Expect(err).NotTo(HaveOccurred())

		w, err := archive.NewRun(sc.Name)
		Expect(err).NotTo(HaveOccurred())

		res, err := loop.Run(w)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())

		samples, err := archive.LoadSamples(w.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(Equal(res.Samples))

		runs, err := archive.ListRuns()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].ID).To(Equal(w.ID()))
		Expect(runs[0].Name).To(Equal("baseline"))
		Expect(runs[0].Samples).To(Equal(len(res.Samples)))
	})

	It("keeps runs apart", func() {
		a, err := archive.NewRun("a")
		Expect(err).NotTo(HaveOccurred())
		b, err := archive.NewRun("b")
		Expect(err).NotTo(HaveOccurred())

		_, resA := runPreset("single")
		for _, s := range resA.Samples[:10] {
			Expect(a.Write(s)).To(Succeed())
		}
		Expect(a.Close()).To(Succeed())
		Expect(b.Close()).To(Succeed())

		samples, err := archive.LoadSamples(a.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(HaveLen(10))

		samples, err = archive.LoadSamples(b.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(BeEmpty())
	})

	It("keeps samples buffered before a failed run once closed", func() {
		sc, _ := runPreset("baseline")
		loop, err := sc.Build()
		Expect(err).NotTo(HaveOccurred())

		w, err := archive.NewRun(sc.Name)
		Expect(err).NotTo(HaveOccurred())

		full := errors.New("disk full")
		failing := dynamo.SinkFunc(func(s dynamo.Sample) error {
			if s.Time >= 0.1 {
				return full
			}
			return nil
		})

		_, err = loop.Run(dynamo.MultiSink(w, failing))
		Expect(err).To(MatchError(full))
		Expect(w.Close()).To(Succeed())

		samples, err := archive.LoadSamples(w.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(samples).To(HaveLen(11))

		runs, err := archive.ListRuns()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].Samples).To(Equal(11))
	})

	It("reports unknown runs", func() {
		_, err := archive.LoadSamples("nope")
		Expect(err).To(MatchError(ErrRunNotFound))
	})
})
