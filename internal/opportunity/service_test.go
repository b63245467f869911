package opportunity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/dealflow/internal/opportunity"
	"github.com/MrJamesThe3rd/dealflow/internal/validation"
)

var fixedNow = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func validInput() opportunity.CreateInput {
	return opportunity.CreateInput{
		Title:             "Website Redesign",
		Company:           "Acme",
		Value:             "45000",
		ExpectedCloseDate: "2024-02-15",
	}
}

func TestService_Create(t *testing.T) {
	type args struct {
		input opportunity.CreateInput
	}

	type testCase struct {
		name       string
		args       args
		setupMock  func(m *opportunity.MockRepository)
		wantFields []string
		wantErr    bool
		verify     func(t *testing.T, o *opportunity.Opportunity)
	}

	tests := []testCase{
		{
			name: "Success",
			args: args{input: validInput()},
			setupMock: func(m *opportunity.MockRepository) {
				m.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)
			},
			verify: func(t *testing.T, o *opportunity.Opportunity) {
				assert.NotEqual(t, uuid.Nil, o.ID)
				assert.Equal(t, opportunity.StageQualified, o.Stage)
				assert.Equal(t, 25, o.Probability)
				assert.True(t, decimal.NewFromInt(45000).Equal(o.Value))
				assert.Equal(t, "USD", o.Currency)
				assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), o.ExpectedCloseDate)
				assert.Equal(t, []opportunity.KeyDate{{Label: "Created", Date: fixedNow}}, o.KeyDates)
				assert.Equal(t, fixedNow, o.CreatedAt)
			},
		},
		{
			name: "StageInInputIsDiscarded",
			args: args{input: func() opportunity.CreateInput {
				in := validInput()
				in.Stage = "won"
				in.Probability = "60"
				in.Currency = "eur"
				return in
			}()},
			setupMock: func(m *opportunity.MockRepository) {
				m.EXPECT().Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, o *opportunity.Opportunity) error {
						assert.Equal(t, opportunity.StageQualified, o.Stage)
						return nil
					})
			},
			verify: func(t *testing.T, o *opportunity.Opportunity) {
				assert.Equal(t, opportunity.StageQualified, o.Stage)
				assert.Equal(t, 60, o.Probability)
				assert.Equal(t, "EUR", o.Currency)
			},
		},
		{
			name:       "MissingRequiredFields",
			args:       args{input: opportunity.CreateInput{Value: "abc"}},
			wantFields: []string{"title", "company", "value", "expected_close_date"},
			wantErr:    true,
		},
		{
			name: "ProbabilityOutOfRange",
			args: args{input: func() opportunity.CreateInput {
				in := validInput()
				in.Probability = "120"
				return in
			}()},
			wantFields: []string{"probability"},
			wantErr:    true,
		},
		{
			name: "RepoError",
			args: args{input: validInput()},
			setupMock: func(m *opportunity.MockRepository) {
				m.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("boom"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := opportunity.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := opportunity.NewService(repo, opportunity.WithClock(clock))
			got, err := svc.Create(context.Background(), tt.args.input)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)

				if len(tt.wantFields) > 0 {
					var verrs validation.Errors
					require.True(t, errors.As(err, &verrs))

					for _, f := range tt.wantFields {
						assert.True(t, verrs.Has(f), "expected error on %s", f)
					}
				}

				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)

			if tt.verify != nil {
				tt.verify(t, got)
			}
		})
	}
}

func TestService_MoveStage(t *testing.T) {
	id := uuid.New()

	type testCase struct {
		name      string
		to        opportunity.Stage
		policy    opportunity.TransitionPolicy
		setupMock func(m *opportunity.MockRepository)
		wantErr   error
	}

	runGuard := func(from opportunity.Stage) func(context.Context, uuid.UUID, opportunity.Stage, func(opportunity.Stage) error) error {
		return func(_ context.Context, _ uuid.UUID, _ opportunity.Stage, guard func(opportunity.Stage) error) error {
			return guard(from)
		}
	}

	tests := []testCase{
		{
			name:   "AnyStageWhenUnrestricted",
			to:     opportunity.StageQualified,
			policy: opportunity.Unrestricted,
			setupMock: func(m *opportunity.MockRepository) {
				m.EXPECT().UpdateStage(gomock.Any(), id, opportunity.StageQualified, gomock.Any()).
					DoAndReturn(runGuard(opportunity.StageWon))
			},
		},
		{
			name:    "UnknownStage",
			to:      opportunity.Stage("archived"),
			policy:  opportunity.Unrestricted,
			wantErr: opportunity.ErrInvalidStage,
		},
		{
			name:   "NotFound",
			to:     opportunity.StageWon,
			policy: opportunity.Unrestricted,
			setupMock: func(m *opportunity.MockRepository) {
				m.EXPECT().UpdateStage(gomock.Any(), id, opportunity.StageWon, gomock.Any()).
					Return(opportunity.ErrNotFound)
			},
			wantErr: opportunity.ErrNotFound,
		},
		{
			name:   "StrictRejectsSkip",
			to:     opportunity.StageClosing,
			policy: opportunity.Strict,
			setupMock: func(m *opportunity.MockRepository) {
				m.EXPECT().UpdateStage(gomock.Any(), id, opportunity.StageClosing, gomock.Any()).
					DoAndReturn(runGuard(opportunity.StageQualified))
			},
			wantErr: opportunity.ErrTransitionNotAllowed,
		},
		{
			name:   "StrictAllowsNext",
			to:     opportunity.StageProposal,
			policy: opportunity.Strict,
			setupMock: func(m *opportunity.MockRepository) {
				m.EXPECT().UpdateStage(gomock.Any(), id, opportunity.StageProposal, gomock.Any()).
					DoAndReturn(runGuard(opportunity.StageQualified))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := opportunity.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := opportunity.NewService(repo, opportunity.WithTransitionPolicy(tt.policy))
			err := svc.MoveStage(context.Background(), id, tt.to)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestService_MoveStageNotifiesObserver(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	id := uuid.New()
	repo := opportunity.NewMockRepository(ctrl)
	repo.EXPECT().UpdateStage(gomock.Any(), id, opportunity.StageWon, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _ opportunity.Stage, guard func(opportunity.Stage) error) error {
			return guard(opportunity.StageClosing)
		})
	repo.EXPECT().UpdateStage(gomock.Any(), id, opportunity.StageLost, gomock.Any()).
		Return(opportunity.ErrNotFound)

	var moves [][2]opportunity.Stage

	svc := opportunity.NewService(repo, opportunity.WithStageObserver(func(_ uuid.UUID, from, to opportunity.Stage) {
		moves = append(moves, [2]opportunity.Stage{from, to})
	}))

	require.NoError(t, svc.MoveStage(context.Background(), id, opportunity.StageWon))
	require.ErrorIs(t, svc.MoveStage(context.Background(), id, opportunity.StageLost), opportunity.ErrNotFound)

	assert.Equal(t, [][2]opportunity.Stage{{opportunity.StageClosing, opportunity.StageWon}}, moves)
}

func TestService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stage := opportunity.StageProposal
	filter := opportunity.ListFilter{Stage: &stage}

	repo := opportunity.NewMockRepository(ctrl)
	repo.EXPECT().List(gomock.Any(), filter).Return([]*opportunity.Opportunity{{ID: uuid.New()}}, nil)

	svc := opportunity.NewService(repo)
	got, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestService_Seed(t *testing.T) {
	first := &opportunity.Opportunity{Title: "First", Stage: opportunity.StageWon, Probability: 100, Value: decimal.NewFromInt(10)}
	second := &opportunity.Opportunity{Title: "Second", Stage: opportunity.StageProposal, Probability: 50, Value: decimal.NewFromInt(20)}

	t.Run("InsertsInReverseToKeepOrder", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := opportunity.NewMockRepository(ctrl)
		repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, opportunity.ErrNotFound).Times(2)
		gomock.InOrder(
			repo.EXPECT().Insert(gomock.Any(), second).Return(nil),
			repo.EXPECT().Insert(gomock.Any(), first).Return(nil),
		)

		svc := opportunity.NewService(repo, opportunity.WithClock(clock))
		require.NoError(t, svc.Seed(context.Background(), []*opportunity.Opportunity{first, second}))

		assert.NotEqual(t, uuid.Nil, first.ID)
		assert.Equal(t, "USD", first.Currency)
		assert.Equal(t, []opportunity.KeyDate{{Label: "Created", Date: fixedNow}}, second.KeyDates)
	})

	t.Run("RejectsBadRecordsBeforeInserting", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := opportunity.NewMockRepository(ctrl)
		svc := opportunity.NewService(repo)

		err := svc.Seed(context.Background(), []*opportunity.Opportunity{
			{Title: "ok", Stage: opportunity.StageQualified},
			{Title: "bad", Stage: "pending"},
		})
		assert.ErrorIs(t, err, opportunity.ErrInvalidStage)

		dup := uuid.New()
		err = svc.Seed(context.Background(), []*opportunity.Opportunity{
			{ID: dup, Stage: opportunity.StageQualified},
			{ID: dup, Stage: opportunity.StageQualified},
		})
		assert.ErrorIs(t, err, opportunity.ErrDuplicateID)
	})

	t.Run("RejectsIDAlreadyStoredWithoutInserting", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		stored := uuid.New()
		fresh := uuid.New()

		repo := opportunity.NewMockRepository(ctrl)
		repo.EXPECT().Get(gomock.Any(), stored).Return(&opportunity.Opportunity{ID: stored}, nil)
		repo.EXPECT().Get(gomock.Any(), fresh).Return(nil, opportunity.ErrNotFound).AnyTimes()
		repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Times(0)

		svc := opportunity.NewService(repo)
		err := svc.Seed(context.Background(), []*opportunity.Opportunity{
			{ID: stored, Stage: opportunity.StageQualified},
			{ID: fresh, Stage: opportunity.StageQualified},
		})
		assert.ErrorIs(t, err, opportunity.ErrDuplicateID)
	})

	t.Run("LookupFailureAborts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := opportunity.NewMockRepository(ctrl)
		repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("store offline"))
		repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Times(0)

		svc := opportunity.NewService(repo)
		err := svc.Seed(context.Background(), []*opportunity.Opportunity{{Stage: opportunity.StageQualified}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store offline")
	})

	t.Run("PrependsMissingCreatedKeyDate", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := opportunity.NewMockRepository(ctrl)
		repo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, opportunity.ErrNotFound)
		repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil)

		signed := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
		o := &opportunity.Opportunity{
			Stage:    opportunity.StageWon,
			KeyDates: []opportunity.KeyDate{{Label: "Contract Signed", Date: signed}},
		}

		svc := opportunity.NewService(repo, opportunity.WithClock(clock))
		require.NoError(t, svc.Seed(context.Background(), []*opportunity.Opportunity{o}))

		assert.Equal(t, []opportunity.KeyDate{
			{Label: opportunity.KeyDateCreated, Date: fixedNow},
			{Label: "Contract Signed", Date: signed},
		}, o.KeyDates)
	})
}

func TestStage(t *testing.T) {
	for _, s := range opportunity.Stages {
		parsed, err := opportunity.ParseStage(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := opportunity.ParseStage("Won")
	assert.ErrorIs(t, err, opportunity.ErrInvalidStage)

	assert.True(t, opportunity.StageWon.Terminal())
	assert.True(t, opportunity.StageLost.Terminal())
	assert.False(t, opportunity.StageClosing.Terminal())
	assert.NotContains(t, opportunity.BoardStages, opportunity.StageWon)
	assert.NotContains(t, opportunity.BoardStages, opportunity.StageLost)
	assert.Equal(t, 25, opportunity.StageQualified.DefaultProbability())
	assert.Equal(t, 0, opportunity.StageLost.DefaultProbability())
}

func TestStrictPolicy(t *testing.T) {
	type testCase struct {
		from, to opportunity.Stage
		allowed  bool
	}

	tests := []testCase{
		{opportunity.StageQualified, opportunity.StageProposal, true},
		{opportunity.StageProposal, opportunity.StageNegotiation, true},
		{opportunity.StageNegotiation, opportunity.StageClosing, true},
		{opportunity.StageClosing, opportunity.StageWon, true},
		{opportunity.StageProposal, opportunity.StageLost, true},
		{opportunity.StageProposal, opportunity.StageProposal, true},
		{opportunity.StageQualified, opportunity.StageWon, false},
		{opportunity.StageNegotiation, opportunity.StageProposal, false},
		{opportunity.StageWon, opportunity.StageLost, false},
		{opportunity.StageLost, opportunity.StageQualified, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := opportunity.Strict.Allow(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, opportunity.ErrTransitionNotAllowed)
		})
	}
}
