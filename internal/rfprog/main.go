// Public domain.

package rfprog

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/exit"

	"reflred/amor"
	"reflred/curves"
	"reflred/events"
	"reflred/ort"
	"reflred/reduce"
)

const versionString = "reflred version 0.2 Go source."
const copyrightString = "Public domain."

func Main() {
	defer exit.Handler()

	cl := parseCommandLine()
	cfg, err := readConfig(cl.fnConfig)
	if err != nil {
		exit.Log(err)
	}
	red, err := cfg.reducer()
	if err != nil {
		exit.Log(err)
	}
	qEdges, err := cfg.qEdges()
	if err != nil {
		exit.Log(err)
	}

	// the reference is reduced once up front; every sample run
	// normalizes against it
	var refCfg runConfig
	var sampleCfgs []runConfig
	for _, r := range cfg.Runs {
		if r.Role == "reference" {
			refCfg = r
		} else {
			sampleCfgs = append(sampleCfgs, r)
		}
	}
	ref, err := red.ReduceReference(makeRun(cfg, refCfg, events.Reference, cl, 0))
	if err != nil {
		exit.Log(err)
	}

	// sample runs are reduced concurrently.  each job gets a ticket
	// channel queued in submission order so output stays ordered no
	// matter which worker finishes first.
	type job struct {
		cfg runConfig
		seq int
		rch chan result
	}
	maxWorkers := runtime.GOMAXPROCS(0)
	jobCh := make(chan job)
	prCh := make(chan chan result, maxWorkers*2)

	go func() {
		for i, rc := range sampleCfgs {
			rch := make(chan result, 1)
			prCh <- rch
			jobCh <- job{rc, i, rch}
		}
		close(jobCh)
		close(prCh)
	}()

	for n := 0; n < maxWorkers; n++ {
		go func() {
			for j := range jobCh {
				run := makeRun(cfg, j.cfg, events.Sample, cl, j.seq+1)
				var curve reduce.ReflectivityOverQ
				evaluated, err := red.EvaluateReference(ref, run)
				if err == nil {
					curve, err = red.SampleOverQ(run, evaluated, qEdges)
				}
				j.rch <- result{id: j.cfg.ID, curve: curve, err: err}
			}
		}()
	}

	var reduced []reduce.ReflectivityOverQ
	var ids []string
	for rch := range prCh {
		r := <-rch
		if r.err != nil {
			exit.Log(fmt.Sprintf("run %s: %v", r.id, r.err))
		}
		reduced = append(reduced, r.curve)
		ids = append(ids, r.id)
	}
	if len(reduced) == 0 {
		exit.Log("no sample runs configured")
	}

	corrections := []string{amor.CorrChopper, amor.CorrFootprint, amor.CorrSupermirror}
	scaled := reduced
	if len(reduced) > 1 {
		var factors []float64
		scaled, factors, err = curves.ScaleToOverlap(reduced)
		if err != nil {
			exit.Log(err)
		}
		for i, id := range ids {
			fmt.Printf("%-12s scale %.6g\n", id, factors[i])
		}
	}

	for i, c := range scaled {
		if err := writeCurve(cl.outDir, ids[i], cfg, corrections, c); err != nil {
			exit.Log(err)
		}
	}
	if len(scaled) > 1 {
		combined, err := curves.Combine(scaled, qEdges)
		if err != nil {
			exit.Log(err)
		}
		if err := writeCurve(cl.outDir, "combined", cfg, corrections, combined); err != nil {
			exit.Log(err)
		}
	}
}

type result struct {
	id    string
	curve reduce.ReflectivityOverQ
	err   error
}

// makeRun builds the event run for a configured measurement.  Synthetic
// events stand in for raw file input; the seed is fixed per run when
// -repeatable is set.
func makeRun(cfg *config, rc runConfig, role events.Role, cl *commandLine, seq int) events.Run {
	p := cfg.params(rc)
	n := rc.Events
	if n == 0 {
		n = 200000
	}
	rnd := xrand.New(&xrand.PCGSource{})
	if cl.repeatable {
		rnd.Seed(uint64(3 + seq))
	} else {
		rnd.Seed(uint64(time.Now().UnixNano()) + uint64(seq))
	}
	t, err := synthesize(p, amor.DefaultLimits(), n, rnd)
	if err != nil {
		exit.Log(err)
	}
	return events.Run{ID: rc.ID, Role: role, Params: p, Events: t}
}

func writeCurve(dir, id string, cfg *config, corrections []string, c reduce.ReflectivityOverQ) error {
	h := ort.NewHeader(corrections)
	h.DataSource.Experiment.Title = cfg.Title
	h.DataSource.Experiment.Instrument = "Amor"
	h.DataSource.Experiment.Probe = "neutron"
	h.DataSource.Sample.Name = id
	f, err := os.Create(filepath.Join(dir, id+".ort"))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := ort.Write(f, h, c); err != nil {
		return err
	}
	return f.Close()
}

type commandLine struct {
	fnConfig   string
	outDir     string
	repeatable bool
}

func parseCommandLine() *commandLine {
	var cl commandLine
	dv := flag.Bool("v", false, "")
	flag.StringVar(&cl.outDir, "o", ".", "")
	flag.BoolVar(&cl.repeatable, "repeatable", false, "")
	flag.Usage = func() {
		os.Stderr.WriteString(`
Usage: reflred [options] <config.toml>    reduce runs listed in config
       reflred -v                         display version and copyright

Options:
       -o <output-dir>    directory for .ort files (default .)
       -repeatable        fixed random seed for synthetic events
`)
	}
	flag.Parse()
	switch {
	case *dv:
		fmt.Println(versionString)
		fmt.Println(copyrightString)
		os.Exit(0)
	case flag.NArg() != 1:
		flag.Usage()
		os.Exit(1)
	}
	cl.fnConfig = flag.Arg(0)
	return &cl
}
