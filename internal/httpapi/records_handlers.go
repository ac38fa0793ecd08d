package httpapi

import (
	"net/http"
	"strconv"

	"arcturus.sanger.ac.uk/internal/auth"
	"arcturus.sanger.ac.uk/internal/records"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// --- users ---

func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	users, err := store.ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) GetUser(w http.ResponseWriter, r *http.Request) {
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	u, err := store.GetUser(r.Context(), r.PathValue("username"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type userRequest struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
}

func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	u, err := store.CreateUser(r.Context(), req.Username, req.Role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	u, err := store.UpdateUserRole(r.Context(), r.PathValue("username"), req.Role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request) {
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := store.DeleteUser(r.Context(), r.PathValue("username")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- assemblies ---

func (a *API) ListAssemblies(w http.ResponseWriter, r *http.Request) {
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	onlyCurrent := r.URL.Query().Get("current") == "true"
	assemblies, err := store.ListAssemblies(r.Context(), onlyCurrent)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assemblies": assemblies})
}

func (a *API) GetAssembly(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "assembly not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	asm, err := store.GetAssembly(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asm)
}

type assemblyRequest struct {
	Name string `json:"name"`
}

func (a *API) CreateAssembly(w http.ResponseWriter, r *http.Request) {
	var req assemblyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	asm, err := store.CreateAssembly(r.Context(), records.NewAssembly{
		Name:    req.Name,
		Creator: identity.Username,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asm)
}

func (a *API) UpdateAssembly(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "assembly not found")
		return
	}
	var req assemblyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	asm, err := store.UpdateAssembly(r.Context(), id, req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asm)
}

func (a *API) DeleteAssembly(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "assembly not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := store.DeleteAssembly(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- projects ---

func (a *API) ListProjects(w http.ResponseWriter, r *http.Request) {
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var assemblyID int64
	if raw := r.URL.Query().Get("assembly"); raw != "" {
		assemblyID, _ = strconv.ParseInt(raw, 10, 64)
	}
	projects, err := store.ListProjects(r.Context(), assemblyID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (a *API) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "project not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := store.GetProject(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type createProjectRequest struct {
	AssemblyID int64  `json:"assembly_id"`
	Name       string `json:"name"`
	Owner      string `json:"owner,omitempty"`
	Status     string `json:"status,omitempty"`
	Directory  string `json:"directory,omitempty"`
}

func (a *API) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	p, err := store.CreateProject(r.Context(), records.NewProject{
		AssemblyID: req.AssemblyID,
		Name:       req.Name,
		Owner:      req.Owner,
		Status:     req.Status,
		Directory:  req.Directory,
		Creator:    identity.Username,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type updateProjectRequest struct {
	Name   *string `json:"name,omitempty"`
	Owner  *string `json:"owner,omitempty"`
	Status *string `json:"status,omitempty"`
}

func (a *API) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "project not found")
		return
	}
	var req updateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := store.UpdateProject(r.Context(), id, records.ProjectUpdate{
		Name:   req.Name,
		Owner:  req.Owner,
		Status: req.Status,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "project not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := store.DeleteProject(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) ProjectContigs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "project not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	contigs, err := store.ProjectContigs(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	summary, err := store.ProjectContigSummary(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contigs": contigs,
		"summary": summary,
	})
}

// ProjectExport lists a project's current contigs in the shape consumed by
// downstream export tooling. Sequence data itself is out of scope here;
// the response carries the contig inventory only.
func (a *API) ProjectExport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "project not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := store.GetProject(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	contigs, err := store.ProjectContigs(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project": p.Name,
		"contigs": contigs,
	})
}

// --- contigs ---

func (a *API) CurrentContigs(w http.ResponseWriter, r *http.Request) {
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var minLen int64
	if raw := r.URL.Query().Get("minlen"); raw != "" {
		minLen, _ = strconv.ParseInt(raw, 10, 64)
	}
	contigs, err := store.CurrentContigs(r.Context(), minLen)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contigs": contigs})
}

func (a *API) GetContig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "contig not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err := store.GetContig(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) ContigTags(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "contig not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	mappings, err := store.ContigTagMappings(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": mappings})
}

// --- contig tags ---

func (a *API) ListContigTags(w http.ResponseWriter, r *http.Request) {
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	tags, err := store.ListContigTags(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// GetContigTag resolves by systematic id first, then by numeric id, and
// includes the tag's placements on current contigs.
func (a *API) GetContigTag(w http.ResponseWriter, r *http.Request) {
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	raw := r.PathValue("id")
	tag, err := store.FindContigTagBySystematicID(r.Context(), raw)
	if err != nil {
		id, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			writeDomainError(w, r, err)
			return
		}
		if tag, err = store.GetContigTag(r.Context(), id); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	mappings, err := store.CurrentTagMappings(r.Context(), tag.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tag":      tag,
		"mappings": mappings,
	})
}

type contigTagRequest struct {
	TagType      string `json:"tagtype"`
	SystematicID string `json:"systematic_id,omitempty"`
	Comment      string `json:"comment,omitempty"`
}

func (a *API) CreateContigTag(w http.ResponseWriter, r *http.Request) {
	var req contigTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	tag, err := store.CreateContigTag(r.Context(), records.NewContigTag{
		TagType:      req.TagType,
		SystematicID: req.SystematicID,
		Comment:      req.Comment,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (a *API) UpdateContigTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "tag not found")
		return
	}
	var req contigTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	tag, err := store.UpdateContigTag(r.Context(), id, records.NewContigTag{
		TagType:      req.TagType,
		SystematicID: req.SystematicID,
		Comment:      req.Comment,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (a *API) DeleteContigTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "tag not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := store.DeleteContigTag(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- tag mappings ---

func (a *API) GetTagMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "tag mapping not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	m, err := store.GetTagMapping(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type tagMappingRequest struct {
	ContigID     int64  `json:"contig_id"`
	TagID        int64  `json:"tag_id,omitempty"`
	SystematicID string `json:"systematic_id,omitempty"`
	TagType      string `json:"tagtype,omitempty"`
	Start        int64  `json:"cstart"`
	Final        int64  `json:"cfinal"`
	Strand       string `json:"strand,omitempty"`
	Comment      string `json:"comment,omitempty"`
}

func (a *API) CreateTagMapping(w http.ResponseWriter, r *http.Request) {
	var req tagMappingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	m, err := store.CreateTagMapping(r.Context(), records.NewTagMapping{
		ContigID:     req.ContigID,
		TagID:        req.TagID,
		SystematicID: req.SystematicID,
		TagType:      req.TagType,
		Start:        req.Start,
		Final:        req.Final,
		Strand:       req.Strand,
		Comment:      req.Comment,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

type updateTagMappingRequest struct {
	Start int64 `json:"cstart"`
	Final int64 `json:"cfinal"`
}

func (a *API) UpdateTagMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "tag mapping not found")
		return
	}
	var req updateTagMappingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	m, err := store.UpdateTagMapping(r.Context(), id, req.Start, req.Final)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) DeleteTagMapping(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusNotFound, "tag mapping not found")
		return
	}
	store, err := recordStore(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := store.DeleteTagMapping(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
