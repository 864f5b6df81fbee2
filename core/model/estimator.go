package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う。戻り値は n×1
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor is the fitting primitive a Family produces: fit on training
// rows, predict on held-out rows.
type Regressor interface {
	Fitter
	Predictor
}

// FeatureImporter is implemented by regressors that can rank their inputs,
// e.g. tree ensembles. Values are normalised to sum to 1.
type FeatureImporter interface {
	FeatureImportances() ([]float64, error)
}

// ParameterGetter exposes the hyperparameters a regressor was built with.
type ParameterGetter interface {
	GetParams() Params
}
