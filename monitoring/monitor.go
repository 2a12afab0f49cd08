// Package monitoring serves analysis results and the state of a running
// analysis over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/coalesce/analysis"
	"github.com/sarchlab/coalesce/datarecording"
	"github.com/sarchlab/coalesce/kernel"
)

type kernelResult struct {
	fn     *kernel.Function
	report *analysis.Report
}

// Monitor turns the results of an analysis into a web service.
type Monitor struct {
	portNumber int
	reader     datarecording.DataReader

	resultsLock sync.Mutex
	results     map[string]kernelResult

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		results: make(map[string]kernelResult),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterReader sets the database that recorded runs are read from.
func (m *Monitor) RegisterReader(r datarecording.DataReader) {
	m.reader = r
}

// RegisterResult publishes the report of an analyzed kernel. A later
// result for the same kernel replaces the earlier one.
func (m *Monitor) RegisterResult(fn *kernel.Function, report *analysis.Report) {
	m.resultsLock.Lock()
	defer m.resultsLock.Unlock()

	m.results[fn.Name()] = kernelResult{fn: fn, report: report}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the progress list.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler of all the monitoring endpoints.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/kernels", m.listKernels)
	r.HandleFunc("/api/kernel/{name}", m.kernelReport)
	r.HandleFunc("/api/kernel/{name}/annotated", m.annotatedKernel)
	r.HandleFunc("/api/runs", m.listRuns)
	r.HandleFunc("/api/run/{id}", m.listAccesses)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

// StartServer starts the monitor as a web server in the background and
// returns its address.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	fmt.Fprintf(os.Stderr, "Monitoring analysis with %s\n", url)

	go func() {
		err := http.Serve(listener, m.Router())
		dieOnErr(err)
	}()

	return url
}

func (m *Monitor) listKernels(w http.ResponseWriter, _ *http.Request) {
	m.resultsLock.Lock()
	names := make([]string, 0, len(m.results))
	for name := range m.results {
		names = append(names, name)
	}
	m.resultsLock.Unlock()

	sort.Strings(names)

	writeJSON(w, names)
}

func (m *Monitor) findResultOr404(
	w http.ResponseWriter,
	name string,
) (kernelResult, bool) {
	m.resultsLock.Lock()
	defer m.resultsLock.Unlock()

	res, ok := m.results[name]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Kernel %s not found", name)
	}

	return res, ok
}

func (m *Monitor) kernelReport(w http.ResponseWriter, r *http.Request) {
	res, ok := m.findResultOr404(w, mux.Vars(r)["name"])
	if !ok {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(res.report)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) annotatedKernel(w http.ResponseWriter, r *http.Request) {
	res, ok := m.findResultOr404(w, mux.Vars(r)["name"])
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	res.fn.Print(w)
}

func (m *Monitor) listRuns(w http.ResponseWriter, r *http.Request) {
	params := datarecording.QueryParams{OrderBy: "StartTime"}
	if kernel := r.URL.Query().Get("kernel"); kernel != "" {
		params.Where = "Kernel = ?"
		params.Args = []any{kernel}
	}

	m.query(w, r, datarecording.RunsTable, params)
}

func (m *Monitor) listAccesses(w http.ResponseWriter, r *http.Request) {
	m.query(w, r, datarecording.AccessesTable, datarecording.QueryParams{
		Where:   "RunID = ?",
		Args:    []any{mux.Vars(r)["id"]},
		OrderBy: "Position",
	})
}

func (m *Monitor) query(
	w http.ResponseWriter,
	r *http.Request,
	table string,
	params datarecording.QueryParams,
) {
	if m.reader == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "No database is attached")
		return
	}

	rows, _, err := m.reader.Query(r.Context(), table, params)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	writeJSON(w, rows)
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
