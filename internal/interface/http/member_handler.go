package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "github.com/oksasatya/referral-tree/internal/application"
	"github.com/oksasatya/referral-tree/internal/domain/entity"
	repo "github.com/oksasatya/referral-tree/internal/domain/repository"
	"github.com/oksasatya/referral-tree/internal/interface/middleware"
	"github.com/oksasatya/referral-tree/pkg/response"
	"github.com/oksasatya/referral-tree/pkg/validation"
)

type MemberHandler struct {
	Svc    *app.MemberService
	Logger *logrus.Logger
}

func NewMemberHandler(svc *app.MemberService, logger *logrus.Logger) *MemberHandler {
	return &MemberHandler{Svc: svc, Logger: logger}
}

type memberFields struct {
	Name            string `json:"name" binding:"required"`
	FatherName      string `json:"father_name"`
	DOB             string `json:"dob"`
	Gender          string `json:"gender"`
	MaritalStatus   string `json:"marital_status"`
	Phone           string `json:"phone"`
	Email           string `json:"email" binding:"required,email"`
	NomineeName     string `json:"nominee_name"`
	NomineeRelation string `json:"nominee_relation"`
	NomineePhone    string `json:"nominee_phone"`
	Address         string `json:"address"`
	PinCode         string `json:"pin_code"`
	BankName        string `json:"bank_name"`
	BranchAddress   string `json:"branch_address"`
	AccountType     string `json:"account_type"`
	SponsorName     string `json:"sponsor_name"`
	SponsorID       string `json:"sponsor_id"`
	AccountNo       string `json:"account_no"`
	IFSCCode        string `json:"ifsc_code"`
	MICRNo          string `json:"micr_no"`
	PANNo           string `json:"pan_no"`
	AadhaarNo       string `json:"aadhaar_no"`
}

func (f memberFields) toEntity() entity.Member {
	return entity.Member{
		Name: f.Name, FatherName: f.FatherName, DOB: f.DOB, Gender: f.Gender,
		MaritalStatus: f.MaritalStatus, Phone: f.Phone, Email: f.Email,
		NomineeName: f.NomineeName, NomineeRelation: f.NomineeRelation, NomineePhone: f.NomineePhone,
		Address: f.Address, PinCode: f.PinCode, BankName: f.BankName, BranchAddress: f.BranchAddress,
		AccountType: f.AccountType, SponsorName: f.SponsorName, SponsorID: f.SponsorID,
		Sensitive: entity.Sensitive{
			AccountNo: f.AccountNo, IFSCCode: f.IFSCCode, MICRNo: f.MICRNo,
			PANNo: f.PANNo, AadhaarNo: f.AadhaarNo,
		},
	}
}

// Side is checked by the tree engine so its error codes reach the client.
type addMemberRequest struct {
	memberFields
	ParentID string `json:"parent_id"`
	Side     string `json:"side"`
	Password string `json:"password" binding:"omitempty,pwd"`
	IsAdmin  bool   `json:"is_admin"`
}

type updateMemberRequest struct {
	Name            *string `json:"name" binding:"omitempty,min=1"`
	FatherName      *string `json:"father_name"`
	DOB             *string `json:"dob"`
	Gender          *string `json:"gender"`
	MaritalStatus   *string `json:"marital_status"`
	Phone           *string `json:"phone"`
	Email           *string `json:"email" binding:"omitempty,email"`
	NomineeName     *string `json:"nominee_name"`
	NomineeRelation *string `json:"nominee_relation"`
	NomineePhone    *string `json:"nominee_phone"`
	Address         *string `json:"address"`
	PinCode         *string `json:"pin_code"`
	BankName        *string `json:"bank_name"`
	BranchAddress   *string `json:"branch_address"`
	AccountType     *string `json:"account_type"`
	SponsorName     *string `json:"sponsor_name"`
	SponsorID       *string `json:"sponsor_id"`
	AccountNo       *string `json:"account_no"`
	IFSCCode        *string `json:"ifsc_code"`
	MICRNo          *string `json:"micr_no"`
	PANNo           *string `json:"pan_no"`
	AadhaarNo       *string `json:"aadhaar_no"`
	Password        *string `json:"password"`
	IsAdmin         *bool   `json:"is_admin"`
}

func (r updateMemberRequest) toInput() app.UpdateMemberInput {
	return app.UpdateMemberInput{
		Password: r.Password,
		Patch: repo.MemberPatch{
			Name: r.Name, FatherName: r.FatherName, DOB: r.DOB, Gender: r.Gender,
			MaritalStatus: r.MaritalStatus, Phone: r.Phone, Email: r.Email,
			NomineeName: r.NomineeName, NomineeRelation: r.NomineeRelation, NomineePhone: r.NomineePhone,
			Address: r.Address, PinCode: r.PinCode, BankName: r.BankName, BranchAddress: r.BranchAddress,
			AccountType: r.AccountType, SponsorName: r.SponsorName, SponsorID: r.SponsorID,
			AccountNo: r.AccountNo, IFSCCode: r.IFSCCode, MICRNo: r.MICRNo, PANNo: r.PANNo, AadhaarNo: r.AadhaarNo,
			IsAdmin: r.IsAdmin,
		},
	}
}

type attachRequest struct {
	ParentID string `json:"parent_id" binding:"required"`
	Side     string `json:"side" binding:"required,side"`
}

// Add POST /api/members
func (h *MemberHandler) Add(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, validation.ToDetails(err))
		return
	}
	m, err := h.Svc.AddMember(c.Request.Context(), middleware.ActorFrom(c), app.AddMemberInput{
		ParentID: req.ParentID,
		Side:     req.Side,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
		Fields:   req.toEntity(),
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, m, "member added", nil)
}

// Children GET /api/members/children
func (h *MemberHandler) Children(c *gin.Context) {
	children, err := h.Svc.MyChildren(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, children, "children", map[string]any{"count": len(children)})
}

// MyTree GET /api/members/tree
func (h *MemberHandler) MyTree(c *gin.Context) {
	node, err := h.Svc.MyTree(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, node, "tree", map[string]any{"members": node.Count()})
}

// Subtree GET /api/members/:id/tree
func (h *MemberHandler) Subtree(c *gin.Context) {
	node, err := h.Svc.SubtreeOf(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, node, "tree", map[string]any{"members": node.Count()})
}

// Profile GET /api/members/profile
func (h *MemberHandler) Profile(c *gin.Context) {
	m, err := h.Svc.Profile(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, m, "profile", nil)
}

// Get GET /api/members/:id
func (h *MemberHandler) Get(c *gin.Context) {
	m, err := h.Svc.GetMember(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, m, "member", nil)
}

// Update PUT /api/members/:id
func (h *MemberHandler) Update(c *gin.Context) {
	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, validation.ToDetails(err))
		return
	}
	m, err := h.Svc.UpdateMember(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.toInput())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, m, "member updated", nil)
}

// Delete DELETE /api/members/:id
func (h *MemberHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.Svc.DeleteMember(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"id": id, "deleted": true}, "member deleted", nil)
}

// Attach POST /api/members/:id/attach
func (h *MemberHandler) Attach(c *gin.Context) {
	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, validation.ToDetails(err))
		return
	}
	m, err := h.Svc.Attach(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req.ParentID, req.Side)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, m, "member attached", nil)
}

// Search GET /api/members/search?q=&size=
func (h *MemberHandler) Search(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	docs, err := h.Svc.Search(c.Request.Context(), middleware.ActorFrom(c), c.Query("q"), size)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, docs, "search results", map[string]any{"count": len(docs)})
}

// Export POST /api/members/:id/tree/export
func (h *MemberHandler) Export(c *gin.Context) {
	res, err := h.Svc.ExportTree(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res, "tree exported", nil)
}
