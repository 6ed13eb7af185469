package handlers

import (
	"strconv"

	"github.com/spec-kit/idea-service/internal/api/dto"
	"github.com/spec-kit/idea-service/internal/domain"
)

func userResponse(user domain.Profile) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func ideaResponse(idea *domain.Idea) dto.IdeaResponse {
	return dto.IdeaResponse{
		ID:           idea.ID,
		CustomerID:   idea.CustomerID,
		CustomerName: idea.CustomerName,
		Title:        idea.Title,
		Description:  idea.Description,
		Status:       idea.Status,
		AssignedTo:   idea.AssignedTo,
		CreatedAt:    idea.CreatedAt,
		UpdatedAt:    idea.UpdatedAt,
	}
}

func updateResponse(update *domain.UpdateView) dto.UpdateResponse {
	return dto.UpdateResponse{
		ID:         update.ID,
		IdeaID:     update.IdeaID,
		Seq:        update.Seq,
		AuthorID:   update.AuthorID,
		AuthorName: update.AuthorName,
		AuthorRole: update.AuthorRole,
		Message:    update.Message,
		CreatedAt:  update.CreatedAt,
	}
}

func ideaDetailResponse(detail *domain.IdeaDetail) dto.IdeaDetailResponse {
	updates := make([]dto.UpdateResponse, 0, len(detail.Updates))
	for i := range detail.Updates {
		updates = append(updates, updateResponse(&detail.Updates[i]))
	}
	history := make([]dto.HistoryResponse, 0, len(detail.History))
	for _, h := range detail.History {
		history = append(history, dto.HistoryResponse{
			ID:         h.ID,
			ActorID:    h.ActorID,
			ActorRole:  h.ActorRole,
			ChangeType: h.ChangeType,
			OldValue:   h.OldValue,
			NewValue:   h.NewValue,
			CreatedAt:  h.CreatedAt,
		})
	}
	return dto.IdeaDetailResponse{
		IdeaResponse: ideaResponse(&detail.Idea),
		Updates:      updates,
		History:      history,
	}
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}
