package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/evidence"
	"mercator-hq/cloudengine/pkg/flow"
	"mercator-hq/cloudengine/pkg/properties"
	"mercator-hq/cloudengine/pkg/telemetry/logging"
)

// PropertyResult is one resolved property in a process response.
type PropertyResult struct {
	HasValue      bool   `json:"has_value"`
	Value         any    `json:"value"`
	NoValueReason string `json:"no_value_reason,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ElementError reports an element failure recorded by the pipeline.
type ElementError struct {
	Element string `json:"element"`
	Error   string `json:"error"`
}

// ProcessResponse is the body of a /v1/process response.
type ProcessResponse struct {
	RequestID string                               `json:"request_id"`
	Modules   map[string]map[string]PropertyResult `json:"modules"`
	Errors    []ElementError                       `json:"errors,omitempty"`
}

type processRequest struct {
	Evidence map[string]string `json:"evidence"`
}

// PropertyInfo describes a property in a /v1/properties response.
type PropertyInfo struct {
	Name           string         `json:"name"`
	Type           string         `json:"type,omitempty"`
	Category       string         `json:"category,omitempty"`
	ItemProperties []PropertyInfo `json:"item_properties,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}

	store, err := s.collectEvidence(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	data := s.deps.Pipeline.CreateData(store)
	if err := s.deps.Pipeline.Process(ctx, data); err != nil {
		var cre *cloud.CloudRequestError
		if errors.As(err, &cre) {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ProcessResponse{
		RequestID: logging.GetRequestID(ctx),
		Modules:   make(map[string]map[string]PropertyResult),
	}
	for _, e := range data.Errors() {
		resp.Errors = append(resp.Errors, ElementError{Element: e.DataKey, Error: e.Err.Error()})
	}

	requested := requestedProperties(r.URL.Query()["property"])
	for _, module := range s.deps.Modules {
		md, ok := flow.GetAs[*properties.ModuleData](data, module)
		if !ok {
			continue
		}
		results, err := resolveModule(md, requested[strings.ToLower(module)])
		if err != nil {
			resp.Errors = append(resp.Errors, ElementError{Element: module, Error: err.Error()})
			continue
		}
		resp.Modules[module] = results
	}

	writeJSON(w, http.StatusOK, resp)
}

// collectEvidence reads evidence from the body and, when requested, from the
// call itself.
func (s *Server) collectEvidence(r *http.Request) (*evidence.Store, error) {
	store := evidence.NewStore()

	if r.URL.Query().Get("include_request") == "true" {
		filter, err := s.deps.Pipeline.EvidenceKeyFilter(r.Context())
		if err != nil {
			s.logger.WarnContext(r.Context(), "evidence key filter unavailable, ignoring request evidence", "error", err)
		} else {
			addRequestEvidence(store, r, filter)
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var body processRequest
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		keys := make([]string, 0, len(body.Evidence))
		for k := range body.Evidence {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			store.Set(k, body.Evidence[k])
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		keys := make([]string, 0, len(r.PostForm))
		for k := range r.PostForm {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			store.Set(k, r.PostForm.Get(k))
		}
	case "":
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
	return store, nil
}

func addRequestEvidence(store *evidence.Store, r *http.Request, filter evidence.KeyFilter) {
	add := func(key, value string) {
		if filter.Include(key) {
			store.Set(key, value)
		}
	}
	for name := range r.Header {
		add("header."+name, r.Header.Get(name))
	}
	for _, c := range r.Cookies() {
		add("cookie."+c.Name, c.Value)
	}
	for name, values := range r.URL.Query() {
		if name == "include_request" || name == "property" || len(values) == 0 {
			continue
		}
		add("query."+name, values[0])
	}
}

// requestedProperties groups "module.property" selectors by lower-cased
// module.
func requestedProperties(selectors []string) map[string][]string {
	out := make(map[string][]string)
	for _, sel := range selectors {
		module, prop, ok := strings.Cut(sel, ".")
		if !ok || module == "" || prop == "" {
			continue
		}
		module = strings.ToLower(module)
		out[module] = append(out[module], prop)
	}
	return out
}

// resolveModule resolves the requested properties, or every known property
// when none are requested.
func resolveModule(md *properties.ModuleData, requested []string) (map[string]PropertyResult, error) {
	results := make(map[string]PropertyResult)
	if len(requested) > 0 {
		for _, name := range requested {
			outcome, err := md.Get(name)
			if err != nil {
				var nf *properties.PropertyNotFoundError
				if !errors.As(err, &nf) {
					return nil, err
				}
				results[strings.ToLower(name)] = PropertyResult{Error: err.Error()}
				continue
			}
			results[strings.ToLower(name)] = toResult(outcome)
		}
		return results, nil
	}

	names, err := md.Names()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		outcome, err := md.Lookup(name)
		if err != nil {
			return nil, err
		}
		results[name] = toResult(outcome)
	}
	return results, nil
}

func toResult(o properties.Outcome) PropertyResult {
	if o.HasValue() {
		return PropertyResult{HasValue: true, Value: o.Value}
	}
	return PropertyResult{NoValueReason: o.NoValueReason}
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	schema, err := s.deps.Cloud.Properties(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	out := make(map[string][]PropertyInfo, len(schema))
	for module, props := range schema {
		list := make([]PropertyInfo, 0, len(props))
		for _, name := range props.Names() {
			list = append(list, toInfo(props[strings.ToLower(name)]))
		}
		out[module] = list
	}
	writeJSON(w, http.StatusOK, out)
}

func toInfo(meta cloud.PropertyMeta) PropertyInfo {
	info := PropertyInfo{Name: meta.Name, Type: meta.Type, Category: meta.Category}
	for _, item := range meta.ItemProperties {
		info.ItemProperties = append(info.ItemProperties, toInfo(item))
	}
	return info
}

func (s *Server) handleEvidenceKeys(w http.ResponseWriter, r *http.Request) {
	filter, err := s.deps.Pipeline.EvidenceKeyFilter(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"keys": filter.Keys()})
}

func statusFor(err error) int {
	var cre *cloud.CloudRequestError
	if errors.As(err, &cre) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
