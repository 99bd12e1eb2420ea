// Package salesforcetest provides an in-process Salesforce org for tests.
package salesforcetest

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
	"github.com/nucleus/ucl-salesforce/internal/soql"
)

const (
	batchQueued     = "Queued"
	batchInProgress = "InProgress"
	batchCompleted  = "Completed"
)

// apiError is the error body shape of the REST and Bulk APIs.
type apiError struct {
	Message          string `json:"message,omitempty"`
	ErrorCode        string `json:"errorCode,omitempty"`
	ExceptionCode    string `json:"exceptionCode,omitempty"`
	ExceptionMessage string `json:"exceptionMessage,omitempty"`
}

// Server hosts an in-memory Salesforce org for tests (no network
// listeners). It understands the SOAP login, simple SOQL projections with
// an optional single equality filter and LIMIT, describe calls and Bulk
// API v1 upsert jobs.
type Server struct {
	Username      string
	Password      string
	SecurityToken string

	// PageSize is the number of records per query page.
	PageSize int
	// PendingPolls is how many status polls report InProgress before a
	// batch completes.
	PendingPolls int

	mu        sync.Mutex
	baseURL   string
	sessionID string
	objects   map[string]*Object
	cursors   map[string][]salesforce.SObject
	jobs      map[string]*stubJob
	calls     []string
	seq       int
	handler   http.Handler
	transport http.RoundTripper
}

// Object is one object of the stub org.
type Object struct {
	Name     string
	Prefix   string
	Fields   []salesforce.FieldDescribe
	Required []string
	Records  []map[string]any
}

type stubJob struct {
	object     string
	externalID string
	state      string
	batches    map[string]*stubBatch
}

type stubBatch struct {
	info    salesforce.BatchInfo
	polls   int
	results []salesforce.BulkResult
}

// NewServer constructs a stub org seeded with Account, Contact and
// Lead records.
func NewServer() *Server {
	s := &Server{
		Username:      "integration@example.com",
		Password:      "secret",
		SecurityToken: "token",
		PageSize:      2000,
		baseURL:       "https://stub.my.salesforce.local",
		sessionID:     "00DSTUB!session",
		objects:       map[string]*Object{},
		cursors:       map[string][]salesforce.SObject{},
		jobs:          map[string]*stubJob{},
	}

	s.AddObject(&Object{
		Name:     "Account",
		Prefix:   "001",
		Fields:   describeFields("Id:id", "Name:string", "Industry:picklist"),
		Required: []string{"Name"},
		Records: []map[string]any{
			{"Id": "001000000000001AAA", "Name": "Acme", "Industry": "Manufacturing"},
			{"Id": "001000000000002AAA", "Name": "Globex", "Industry": nil},
		},
	})
	s.AddObject(&Object{
		Name:     "Contact",
		Prefix:   "003",
		Fields:   describeFields("Id:id", "Name:string", "FirstName:string", "LastName:string", "Email:email", "AccountId:reference"),
		Required: []string{"LastName"},
		Records: []map[string]any{
			{"Id": "003000000000001AAA", "Name": "Ada Lovelace", "FirstName": "Ada", "LastName": "Lovelace", "Email": "ada@example.com", "AccountId": "001000000000001AAA"},
			{"Id": "003000000000002AAA", "Name": "Alan Turing", "FirstName": "Alan", "LastName": "Turing", "Email": nil, "AccountId": "001000000000002AAA"},
		},
	})
	s.AddObject(&Object{
		Name:     "Lead",
		Prefix:   "00Q",
		Fields:   describeFields("Id:id", "FirstName:string", "LastName:string", "Company:string", "Email:email", "Status:picklist", "NumberOfEmployees:int"),
		Required: []string{"LastName", "Company"},
		Records: []map[string]any{
			{"Id": "00Q000000000001AAA", "FirstName": "Grace", "LastName": "Hopper", "Company": "Navy", "Email": "grace@example.com", "Status": "Open", "NumberOfEmployees": 5000},
		},
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.handler = mux
	s.transport = &roundTripper{handler: mux}
	return s
}

func describeFields(specs ...string) []salesforce.FieldDescribe {
	fields := make([]salesforce.FieldDescribe, 0, len(specs))
	for _, spec := range specs {
		name, typ, _ := strings.Cut(spec, ":")
		fields = append(fields, salesforce.FieldDescribe{
			Name:       name,
			Label:      name,
			Type:       typ,
			Nillable:   name != "Id",
			Createable: name != "Id",
			Updateable: name != "Id",
			IDLookup:   name == "Id",
		})
	}
	return fields
}

// URL returns the stub base URL.
func (s *Server) URL() string {
	return s.baseURL
}

// Transport returns a RoundTripper that serves requests in-process.
func (s *Server) Transport() http.RoundTripper {
	return s.transport
}

// Config returns a connector configuration pointed at the stub.
func (s *Server) Config() *salesforce.Config {
	return &salesforce.Config{
		Credentials: salesforce.Credentials{
			Username:      s.Username,
			Password:      s.Password,
			SecurityToken: s.SecurityToken,
		},
		LoginURL:     s.baseURL,
		Transport:    s.transport,
		RateLimit:    1000,
		PollInterval: time.Millisecond,
	}
}

// AddObject registers or replaces an object.
func (s *Server) AddObject(o *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[strings.ToLower(o.Name)] = o
}

// Records returns a copy of the records of an object.
func (s *Server) Records(object string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[strings.ToLower(object)]
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(o.Records))
	for _, r := range o.Records {
		cp := make(map[string]any, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

// Calls returns "METHOD path" for every request served so far.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount counts served requests whose path contains fragment.
func (s *Server) CallCount(fragment string) int {
	n := 0
	for _, c := range s.Calls() {
		if strings.Contains(c, fragment) {
			n++
		}
	}
	return n
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%012dSTB", prefix, s.seq)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, r.Method+" "+r.URL.Path)

	path := r.URL.Path
	if strings.HasPrefix(path, "/services/Soap/u/") {
		s.handleLogin(w, r)
		return
	}

	switch {
	case strings.HasPrefix(path, "/services/data/"):
		if r.Header.Get("Authorization") != "Bearer "+s.sessionID {
			writeJSON(w, http.StatusUnauthorized, []apiError{{ErrorCode: "INVALID_SESSION_ID", Message: "Session expired or invalid"}})
			return
		}
		s.handleData(w, r)
	case strings.HasPrefix(path, "/services/async/"):
		if r.Header.Get("X-SFDC-Session") != s.sessionID {
			writeJSON(w, http.StatusBadRequest, apiError{ExceptionCode: "InvalidSessionId", ExceptionMessage: "Invalid session id"})
			return
		}
		s.handleAsync(w, r)
	default:
		writeJSON(w, http.StatusNotFound, []apiError{{ErrorCode: "NOT_FOUND", Message: "The requested resource does not exist"}})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var env struct {
		Body struct {
			Login struct {
				Username string `xml:"username"`
				Password string `xml:"password"`
			} `xml:"login"`
		} `xml:"Body"`
	}
	body, _ := io.ReadAll(r.Body)
	if err := xml.Unmarshal(body, &env); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, soapFault("sf:INVALID_REQUEST", "malformed envelope"))
		return
	}
	if env.Body.Login.Username != s.Username || env.Body.Login.Password != s.Password+s.SecurityToken {
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, soapFault("sf:INVALID_LOGIN", "INVALID_LOGIN: Invalid username, password, security token; or user locked out."))
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns="urn:partner.soap.sforce.com">`+
		`<soapenv:Body><loginResponse><result>`+
		`<serverUrl>%s/services/Soap/u/59.0/00DSTUB</serverUrl>`+
		`<sessionId>%s</sessionId><userId>005STUB000000001</userId>`+
		`<userInfo><organizationId>00DSTUB000000001</organizationId></userInfo>`+
		`</result></loginResponse></soapenv:Body></soapenv:Envelope>`, s.baseURL, xmlEscape(s.sessionID))
}

func soapFault(code, msg string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:sf="urn:fault.partner.soap.sforce.com">` +
		`<soapenv:Body><soapenv:Fault><faultcode>` + code + `</faultcode><faultstring>` + xmlEscape(msg) + `</faultstring>` +
		`</soapenv:Fault></soapenv:Body></soapenv:Envelope>`
}

func xmlEscape(v string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(v))
	return b.String()
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	// /services/data/v59.0/<rest>
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/services/data/"), "/", 2)
	if len(parts) < 2 {
		writeJSON(w, http.StatusNotFound, []apiError{{ErrorCode: "NOT_FOUND", Message: "not found"}})
		return
	}
	rest := strings.Split(parts[1], "/")
	switch {
	case rest[0] == "query" && len(rest) == 1:
		s.handleQuery(w, r)
	case rest[0] == "query" && len(rest) == 2:
		s.handleQueryMore(w, parts[0], rest[1])
	case rest[0] == "sobjects" && len(rest) == 1:
		s.handleDescribeGlobal(w)
	case rest[0] == "sobjects" && len(rest) == 3 && rest[2] == "describe":
		s.handleDescribe(w, rest[1])
	default:
		writeJSON(w, http.StatusNotFound, []apiError{{ErrorCode: "NOT_FOUND", Message: "not found"}})
	}
}

func (s *Server) handleDescribeGlobal(w http.ResponseWriter) {
	objects := make([]salesforce.GlobalObject, 0, len(s.objects))
	for _, o := range s.objects {
		objects = append(objects, salesforce.GlobalObject{Name: o.Name, Label: o.Name, Queryable: true, Createable: true, Updateable: true})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sobjects": objects})
}

func (s *Server) handleDescribe(w http.ResponseWriter, name string) {
	o, ok := s.objects[strings.ToLower(name)]
	if !ok {
		writeJSON(w, http.StatusNotFound, []apiError{{ErrorCode: "NOT_FOUND", Message: "The requested resource does not exist"}})
		return
	}
	writeJSON(w, http.StatusOK, salesforce.DescribeResult{
		Name: o.Name, Label: o.Name, Queryable: true, Createable: true, Updateable: true, Fields: o.Fields,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q, err := soql.Parse(r.URL.Query().Get("q"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, []apiError{{ErrorCode: "MALFORMED_QUERY", Message: err.Error()}})
		return
	}
	o, ok := s.objects[strings.ToLower(q.Object)]
	if !ok {
		writeJSON(w, http.StatusBadRequest, []apiError{{ErrorCode: "INVALID_TYPE", Message: fmt.Sprintf("sObject type '%s' is not supported.", q.Object)}})
		return
	}
	for _, f := range q.Fields {
		root, _, _ := strings.Cut(f, ".")
		if !hasField(o, root) {
			writeJSON(w, http.StatusBadRequest, []apiError{{ErrorCode: "INVALID_FIELD", Message: fmt.Sprintf("No such column '%s' on entity '%s'.", f, o.Name)}})
			return
		}
	}
	filterField, filterValue, hasFilter := parseFilter(q.Where)

	var records []salesforce.SObject
	for _, rec := range o.Records {
		if hasFilter && cell(rec[filterField]) != filterValue {
			continue
		}
		if q.Limit != nil && len(records) >= *q.Limit {
			break
		}
		records = append(records, s.project(o, rec, q.Fields))
	}
	s.writePage(w, strings.Split(strings.TrimPrefix(r.URL.Path, "/services/data/"), "/")[0], records, len(records))
}

func (s *Server) handleQueryMore(w http.ResponseWriter, version, cursor string) {
	records, ok := s.cursors[cursor]
	if !ok {
		writeJSON(w, http.StatusBadRequest, []apiError{{ErrorCode: "INVALID_QUERY_LOCATOR", Message: "invalid query locator"}})
		return
	}
	delete(s.cursors, cursor)
	s.writePage(w, version, records, -1)
}

func (s *Server) writePage(w http.ResponseWriter, version string, records []salesforce.SObject, total int) {
	page := records
	resp := map[string]any{"done": true}
	if s.PageSize > 0 && len(records) > s.PageSize {
		page = records[:s.PageSize]
		s.seq++
		cursor := fmt.Sprintf("01gSTUB%06d-%d", s.seq, s.PageSize)
		s.cursors[cursor] = records[s.PageSize:]
		resp["done"] = false
		resp["nextRecordsUrl"] = "/services/data/" + version + "/query/" + cursor
	}
	if page == nil {
		page = []salesforce.SObject{}
	}
	if total >= 0 {
		resp["totalSize"] = total
	} else {
		resp["totalSize"] = len(records)
	}
	resp["records"] = page
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) project(o *Object, rec map[string]any, fields []string) salesforce.SObject {
	id, _ := rec["Id"].(string)
	obj := salesforce.SObject{Attributes: &salesforce.Attributes{Type: o.Name, URL: "/services/data/v59.0/sobjects/" + o.Name + "/" + id}}
	seen := map[string]bool{}
	for _, f := range fields {
		root, _, _ := strings.Cut(f, ".")
		name := fieldName(o, root)
		if seen[name] {
			continue
		}
		seen[name] = true
		raw, _ := json.Marshal(rec[name])
		obj.Fields = append(obj.Fields, salesforce.Field{Name: name, Value: raw})
	}
	return obj
}

func hasField(o *Object, name string) bool {
	return fieldName(o, name) != ""
}

func fieldName(o *Object, name string) string {
	for _, f := range o.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Name
		}
	}
	return ""
}

// parseFilter understands a single "Field = 'value'" condition.
func parseFilter(where string) (string, string, bool) {
	if where == "" {
		return "", "", false
	}
	field, value, ok := strings.Cut(where, "=")
	if !ok {
		return "", "", false
	}
	value = strings.TrimSpace(value)
	value = strings.TrimSuffix(strings.TrimPrefix(value, "'"), "'")
	return strings.TrimSpace(field), value, true
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (s *Server) handleAsync(w http.ResponseWriter, r *http.Request) {
	// /services/async/59.0/job[/id[/batch[/id[/result]]]]
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	rest := parts[3:]
	switch {
	case len(rest) == 1 && r.Method == http.MethodPost:
		s.createJob(w, r)
	case len(rest) == 2 && r.Method == http.MethodPost:
		s.closeJob(w, r, rest[1])
	case len(rest) == 3 && r.Method == http.MethodPost:
		s.addBatch(w, r, rest[1])
	case len(rest) == 4 && r.Method == http.MethodGet:
		s.batchStatus(w, rest[1], rest[3])
	case len(rest) == 5 && r.Method == http.MethodGet && rest[4] == "result":
		s.batchResult(w, rest[1], rest[3])
	default:
		writeJSON(w, http.StatusNotFound, apiError{ExceptionCode: "InvalidUrl", ExceptionMessage: "unknown resource"})
	}
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req salesforce.JobInfo
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{ExceptionCode: "InvalidJob", ExceptionMessage: err.Error()})
		return
	}
	o, ok := s.objects[strings.ToLower(req.Object)]
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{ExceptionCode: "InvalidJob", ExceptionMessage: "Unable to find object: " + req.Object})
		return
	}
	s.seq++
	id := fmt.Sprintf("750STUB%08d", s.seq)
	s.jobs[id] = &stubJob{object: o.Name, externalID: req.ExternalIDFieldName, state: "Open", batches: map[string]*stubBatch{}}
	writeJSON(w, http.StatusCreated, salesforce.JobInfo{
		ID: id, Object: o.Name, Operation: req.Operation, ExternalIDFieldName: req.ExternalIDFieldName, ContentType: "JSON", State: "Open",
	})
}

func (s *Server) closeJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := s.jobs[jobID]
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{ExceptionCode: "InvalidJob", ExceptionMessage: "unknown job"})
		return
	}
	job.state = "Closed"
	writeJSON(w, http.StatusOK, salesforce.JobInfo{ID: jobID, Object: job.object, State: job.state})
}

func (s *Server) addBatch(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := s.jobs[jobID]
	if !ok || job.state != "Open" {
		writeJSON(w, http.StatusBadRequest, apiError{ExceptionCode: "InvalidJob", ExceptionMessage: "job is not open"})
		return
	}
	var records []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{ExceptionCode: "InvalidBatch", ExceptionMessage: err.Error()})
		return
	}
	o := s.objects[strings.ToLower(job.object)]
	results := make([]salesforce.BulkResult, 0, len(records))
	for _, rec := range records {
		results = append(results, s.upsertRecord(o, job.externalID, rec))
	}
	s.seq++
	batchID := fmt.Sprintf("751STUB%08d", s.seq)
	b := &stubBatch{
		info:    salesforce.BatchInfo{ID: batchID, JobID: jobID, State: batchQueued},
		results: results,
	}
	for _, res := range results {
		b.info.NumberRecordsProcessed++
		if !res.Success {
			b.info.NumberRecordsFailed++
		}
	}
	job.batches[batchID] = b
	writeJSON(w, http.StatusCreated, b.info)
}

func (s *Server) upsertRecord(o *Object, externalID string, rec map[string]any) salesforce.BulkResult {
	for name := range rec {
		if !hasField(o, name) {
			return salesforce.BulkResult{Errors: []salesforce.BulkError{{
				StatusCode: "INVALID_FIELD",
				Message:    fmt.Sprintf("No such column '%s' on entity '%s'", name, o.Name),
				Fields:     []string{name},
			}}}
		}
	}

	key := cell(rec[externalID])
	if key != "" {
		for _, existing := range o.Records {
			if cell(existing[externalID]) == key {
				for k, v := range rec {
					existing[fieldName(o, k)] = v
				}
				id, _ := existing["Id"].(string)
				return salesforce.BulkResult{Success: true, ID: id, Errors: []salesforce.BulkError{}}
			}
		}
		if strings.EqualFold(externalID, "Id") {
			return salesforce.BulkResult{Errors: []salesforce.BulkError{{StatusCode: "NOT_FOUND", Message: "Provided external ID field does not exist or is not accessible: " + key}}}
		}
	}

	for _, req := range o.Required {
		if cell(rec[req]) == "" {
			return salesforce.BulkResult{Errors: []salesforce.BulkError{{
				StatusCode: "REQUIRED_FIELD_MISSING",
				Message:    "Required fields are missing: [" + req + "]",
				Fields:     []string{req},
			}}}
		}
	}
	created := map[string]any{}
	for k, v := range rec {
		created[fieldName(o, k)] = v
	}
	id := s.nextID(o.Prefix)
	created["Id"] = id
	o.Records = append(o.Records, created)
	return salesforce.BulkResult{Success: true, Created: true, ID: id, Errors: []salesforce.BulkError{}}
}

func (s *Server) batchStatus(w http.ResponseWriter, jobID, batchID string) {
	b, ok := s.batch(jobID, batchID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{ExceptionCode: "InvalidBatch", ExceptionMessage: "unknown batch"})
		return
	}
	if b.polls < s.PendingPolls {
		b.polls++
		b.info.State = batchInProgress
	} else {
		b.info.State = batchCompleted
	}
	writeJSON(w, http.StatusOK, b.info)
}

func (s *Server) batchResult(w http.ResponseWriter, jobID, batchID string) {
	b, ok := s.batch(jobID, batchID)
	if !ok || b.info.State != batchCompleted {
		writeJSON(w, http.StatusBadRequest, apiError{ExceptionCode: "InvalidBatch", ExceptionMessage: "batch not completed"})
		return
	}
	writeJSON(w, http.StatusOK, b.results)
}

func (s *Server) batch(jobID, batchID string) (*stubBatch, bool) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	b, ok := job.batches[batchID]
	return b, ok
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type roundTripper struct {
	handler http.Handler
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rr := httptest.NewRecorder()
	rt.handler.ServeHTTP(rr, req)
	res := rr.Result()
	res.Request = req
	return res, nil
}
